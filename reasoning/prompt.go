package reasoning

import (
	"fmt"
	"strings"

	"github.com/glassboxlabs/glasstrace/agent"
)

// BuildSystemPrompt renders the fixed system prompt from the registered
// tools, including the decision protocol the provider must follow.
func BuildSystemPrompt(tools []agent.ToolDefinition) string {
	var b strings.Builder
	b.WriteString("You are a helpful AI agent with access to the following tools:\n\n")
	for _, tool := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
	}
	b.WriteString(`
Your task is to:
1. Understand the user's request
2. Determine which tools (if any) are needed
3. Execute the appropriate tools
4. Provide a helpful response

Reply with exactly one JSON object and nothing else:
{"thought": "<your reasoning>", "action": "<tool name or final_answer>", "args": {...}}

Rules:
- "action" must be one of the tool names above, or "final_answer" when you are done.
- For a tool call, "args" holds that tool's arguments.
- For "final_answer", put the answer text in args.answer.
- Interpret tool results accurately; if a tool returns an error, correct your input and retry.

Always be helpful, accurate, and concise.
`)
	return b.String()
}
