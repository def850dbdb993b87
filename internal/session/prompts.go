package session

import (
	"fmt"
	"sort"
	"strings"

	"analyst/internal/loader"
)

// systemPrompt frames the analysis task and the response grammar. The
// specialist list and file inventory are substituted per session.
const systemPrompt = `You are a data analyst. You answer questions about the provided files by writing Python code that runs in a sandbox alongside those files.

Respond in exactly one of these forms:

1. A Python code block to run:
` + "```python" + `
<code>
` + "```" + `
The files listed below are in the working directory. Print anything you need to see. Write any files you want returned to the user.

2. Delegate a sub-task to a specialist:
call_llm: {"model": "<specialist>", "prompt": "<instruction>"}
Available specialists: %s

3. When you know the answer, finish with:
Final Answer: <your answer>

Only the first code block in a response is run. You have a limited number of rounds; be economical.`

// buildSystemPrompt renders the session frame.
func buildSystemPrompt(specialists []string) string {
	names := append([]string(nil), specialists...)
	sort.Strings(names)
	return fmt.Sprintf(systemPrompt, strings.Join(names, ", "))
}

// buildTaskPrompt renders the question plus the file inventory.
func buildTaskPrompt(question string, files []loader.File) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	if len(files) > 0 {
		b.WriteString("\n\nAvailable files:\n")
		b.WriteString(loader.DescribeAll(files))
	}
	return b.String()
}

// parseFailureFeedback nudges the model back onto the response grammar.
func parseFailureFeedback(reason string) string {
	return fmt.Sprintf("Your previous response could not be interpreted (%s). Reply with a Python code block, a call_llm directive, or a Final Answer.", reason)
}
