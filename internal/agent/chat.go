package agent

import (
	"encoding/json"
	"strings"

	"mixagent/internal/action"
)

const chatSystemPrompt = `You are an expert live sound engineer AI assistant.
The engineer has sent you a message. Respond conversationally AND suggest
specific mix actions if appropriate.

If the message is a question about the current mix, answer it based on the
mix state provided.

If the message is an instruction (e.g. "bring up the vocals", "leave the
drums alone", "more reverb on the snare"), acknowledge it and produce actions.

Respond with JSON:
{
  "reply": "Your conversational response to the engineer",
  "actions": [
    {
      "action": "set_fader|set_eq|set_comp|set_hpf|set_send|mute|unmute|no_action|observation",
      "channel": 1, "role": "Kick", "value": 0.75,
      "value2": 0.0, "value3": 1.0, "band": 1, "aux": 0,
      "urgency": "normal", "reason": "explanation"
    }
  ]
}`

type chatResponse struct {
	Reply   string            `json:"reply"`
	Actions []json.RawMessage `json:"actions"`
}

// HandleChatMessage processes an engineer chat message. The message
// becomes a standing instruction immediately; the LLM round-trip runs
// on a detached goroutine so the UI never blocks on network I/O.
func (a *Agent) HandleChatMessage(message string) {
	a.logger.Info("engineer chat", "message", message)
	a.memory.RecordInstruction(message)

	if a.engine == nil {
		return
	}
	go a.runSafely("chat", func() { a.chatRoundTrip(message) })
}

func (a *Agent) chatRoundTrip(message string) {
	mixContext := a.buildMixContext()

	prompt, err := json.Marshal(map[string]any{
		"mix_state":      mixContext,
		"recent_history": a.memory.BuildContext(10),
		"engineer_says":  message,
	})
	if err != nil {
		a.logger.Error("marshal chat prompt failed", "error", err)
		return
	}

	response, err := a.engine.CallRaw(chatSystemPrompt, string(prompt))
	if err != nil {
		a.addChatResponse("Error: couldn't reach the LLM — " + err.Error())
		return
	}

	reply, actions, ok := parseChatResponse(response)
	if !ok {
		// Not JSON: surface the raw text as the reply.
		if len(response) > 200 {
			response = response[:200]
		}
		a.addChatResponse(response)
		return
	}

	if reply != "" {
		a.addChatResponse(reply)
	}
	for _, proposed := range actions {
		a.dispatchChatAction(proposed, mixContext)
	}
}

func (a *Agent) dispatchChatAction(proposed action.Action, mixContext map[string]any) {
	switch proposed.Type {
	case action.NoAction, action.Observation:
		if proposed.Reason != "" {
			a.addLog("LLM: " + proposed.Reason)
		}
		return
	}

	if !a.queue.Submit(proposed) {
		a.addLog("Queued: " + proposed.Describe())
		return
	}

	vr := a.validator.Validate(proposed, a.model)
	if !vr.Valid {
		a.logger.Warn("chat action validation failed", "warning", vr.Warning)
		return
	}
	er := a.executor.Execute(vr.Clamped)
	if er.Success {
		a.memory.RecordAction(vr.Clamped, mixContext)
		a.addLog("Chat: " + vr.Clamped.Describe())
	}
}

// parseChatResponse extracts {reply, actions} from the response text,
// tolerating surrounding prose.
func parseChatResponse(response string) (string, []action.Action, bool) {
	start := strings.IndexByte(response, '{')
	end := strings.LastIndexByte(response, '}')
	if start < 0 || end < start {
		return "", nil, false
	}

	var parsed chatResponse
	if err := json.Unmarshal([]byte(response[start:end+1]), &parsed); err != nil {
		return "", nil, false
	}

	actions := make([]action.Action, 0, len(parsed.Actions))
	for _, raw := range parsed.Actions {
		actions = append(actions, action.FromJSON(raw))
	}
	return parsed.Reply, actions, true
}
