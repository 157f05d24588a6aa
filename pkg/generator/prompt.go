package generator

import "strings"

// DefaultSystemPrompt is the assistant instruction used when none is
// configured.
const DefaultSystemPrompt = `Eres un asistente experto de la Universidad Veracruzana.
Responde a la pregunta basándote ÚNICAMENTE en tu conocimiento sobre la universidad y en la conversación reciente.
Si no conoces la respuesta, di "No tengo esa información".`

// BuildPrompt renders the user prompt for question. The history section is
// omitted when history is blank.
func BuildPrompt(question, history string) string {
	var b strings.Builder
	if h := strings.TrimSpace(history); h != "" {
		b.WriteString("CONVERSACIÓN RECIENTE:\n")
		b.WriteString(h)
		b.WriteString("\n\n")
	}
	b.WriteString("PREGUNTA DEL USUARIO:\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nRESPUESTA (Sé claro, usa viñetas si es necesario):")
	return b.String()
}
