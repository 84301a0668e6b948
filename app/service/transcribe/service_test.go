package transcribe

import (
	"strings"
	"testing"

	"wellcheck/app/service/queue"
)

type fakeMuter bool

func (m fakeMuter) Speaking() bool {
	return bool(m)
}

func TestHandlePhrase(t *testing.T) {
	q, _ := queue.New(nil)

	s := &Service{queue: q, muter: fakeMuter(false)}
	s.handlePhrase("")
	s.handlePhrase("I feel rested")

	s.muter = fakeMuter(true)
	s.handlePhrase("echo of the agent")

	_ = q.Shutdown()

	var got []queue.Message
	for msg := range q.Channel() {
		got = append(got, msg)
	}

	if len(got) != 1 {
		t.Fatalf("messages = %+v", got)
	}
	if got[0].Source != queue.SourceVoice || got[0].Text != "I feel rested" {
		t.Fatalf("message = %+v", got[0])
	}
}

func TestCaptureArgs(t *testing.T) {
	args := strings.Join(captureArgs("pulse", "default"), " ")

	for _, want := range []string{"-f pulse", "-i default", "-ar 16000", "-ac 1", "-f s16le -"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}
