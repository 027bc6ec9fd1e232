package wamp

import (
	"encoding/json"
	"testing"

	"github.com/gammazero/nexus/v3/wamp"
	"github.com/pion/webrtc/v2"
)

func TestParseAnswer(t *testing.T) {
	answer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  "v=0",
	}

	raw, err := json.Marshal(answer)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := parseAnswer(wamp.List{string(raw)})
	if err != nil {
		t.Fatal(err)
	}
	if parsed.SDP != "v=0" {
		t.Fatalf("SDP should round-trip, got %s", parsed.SDP)
	}
}

func TestParseAnswerMalformed(t *testing.T) {
	if _, err := parseAnswer(wamp.List{}); err == nil {
		t.Fatal("an empty result should be an error")
	}

	if _, err := parseAnswer(wamp.List{42}); err == nil {
		t.Fatal("a non-string result should be an error")
	}

	if _, err := parseAnswer(wamp.List{"not json"}); err == nil {
		t.Fatal("a result that is not an SDP should be an error")
	}
}
