package orchestrator

import (
	"strconv"
	"strings"
)

// scriptTag is the fence language marking a dispatchable block.
const scriptTag = "python"

// Script is one dispatchable code block extracted from a model reply.
type Script struct {
	TargetID uint
	Body     string
}

// ExtractScripts pulls dispatchable code blocks out of a model reply.
// Fenced segments are the odd-indexed pieces of a split on "```"; only
// blocks tagged with the script marker qualify. The first line may carry
// an explicit target marker (ID:<int>); when it is absent or unparsable
// the block targets the original sender. The marker line stays in the
// body — the prompt instructs the model to write it as a comment.
func ExtractScripts(reply string, defaultTarget uint) []Script {
	parts := strings.Split(reply, "```")

	var scripts []Script
	for i := 1; i < len(parts); i += 2 {
		block := parts[i]
		if !strings.HasPrefix(block, scriptTag) {
			continue
		}
		body := strings.TrimLeft(strings.TrimPrefix(block, scriptTag), "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}
		scripts = append(scripts, Script{
			TargetID: parseTarget(body, defaultTarget),
			Body:     body,
		})
	}
	return scripts
}

func parseTarget(body string, defaultTarget uint) uint {
	first, _, _ := strings.Cut(body, "\n")
	if !strings.Contains(strings.ToUpper(first), "ID") {
		return defaultTarget
	}
	_, after, found := strings.Cut(first, ":")
	if !found {
		return defaultTarget
	}
	id, err := strconv.Atoi(strings.TrimSpace(after))
	if err != nil || id <= 0 {
		return defaultTarget
	}
	return uint(id)
}
