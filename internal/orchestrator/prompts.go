package orchestrator

import (
	"fmt"
	"strings"

	"clusterchat/internal/llm"
	"clusterchat/internal/model"
)

// planningPrompt drives the dispatch rounds: the model may request code
// execution on specific members by emitting fenced python blocks.
const planningPrompt = `You are the assistant of a cluster of machines that share one identity.
You can run Python code on any member machine: reply with a fenced code block
tagged "python" whose first line is a comment of the form "# ID:<member id>"
naming the target machine. The code runs there and its output is returned to
you before you answer. You may dispatch several blocks in one reply. When you
have everything you need, reply without any python block.
A helper module "utils" is available to scripts for exchanging files with the
server (send_file/get_file).`

// answeringPrompt produces the user-visible reply once dispatching is done.
const answeringPrompt = `You are the assistant of a cluster of machines. Below the conversation you
receive a transcript of your own investigation, wrapped in thinking markers.
Use it to give the user a clear, direct answer. Do not mention the markers and
do not include code blocks meant for execution.`

// Markers wrapping the thinking transcript in the final completion call.
const (
	thinkingOpen  = "[THINKING]\n"
	thinkingClose = "\n[/THINKING]"
)

// continuationCue nudges the model into the next round after results are
// folded in.
const continuationCue = "\nContinue. Dispatch more code if needed, or reply without a python block to finish.\n"

// MessageSeparator splits a stored agent message into the reasoning
// transcript and the visible answer. Renderers cut on the last occurrence.
const MessageSeparator = "\n=====ANSWER=====\n"

// SplitAnswer returns the reasoning and answer halves of a stored agent
// message. Messages without a separator are all answer.
func SplitAnswer(text string) (thinking, answer string) {
	idx := strings.LastIndex(text, MessageSeparator)
	if idx < 0 {
		return "", text
	}
	return text[:idx], text[idx+len(MessageSeparator):]
}

func rosterPrompt(members []model.Member) string {
	var b strings.Builder
	b.WriteString("\n\nCluster members:\n")
	for _, m := range members {
		about := m.About
		if about == "" {
			about = "no description"
		}
		fmt.Fprintf(&b, "- ID %d: %s\n", m.ID, about)
	}
	return b.String()
}

// historyMessages converts stored chat messages into completion turns.
// Agent-authored messages (nil member) become assistant turns, and only
// their visible answer half is replayed.
func historyMessages(messages []model.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		if m.MemberID == nil {
			_, answer := SplitAnswer(m.Text)
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: answer})
			continue
		}
		out = append(out, llm.Message{Role: llm.RoleUser, Content: m.Text})
	}
	return out
}

func taskTranscript(task *model.Task) string {
	return fmt.Sprintf("\nOutput from member %d:\n%s\n", task.MemberID, task.ReturnText)
}
