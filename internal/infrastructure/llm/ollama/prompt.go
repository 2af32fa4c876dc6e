package ollama

import "fmt"

func buildAnswerPrompt(contextText, question string) string {
	return fmt.Sprintf(`You are a document assistant.
Answer the question only from the context below.
If the context does not contain the answer, say so directly.

Context:
%s

Question:
%s
`, contextText, question)
}
