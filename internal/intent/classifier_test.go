package intent

import (
	"testing"

	"github.com/coderag/engine/internal/ragquery"
	"github.com/stretchr/testify/assert"
)

func TestClassify_PriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		text string
		want ragquery.Intent
	}{
		{"debug wins over test", "fix the failing test for this error", ragquery.IntentDebug},
		{"test wins over refactor", "refactor this and add a test", ragquery.IntentTest},
		{"refactor wins over document", "refactor and document this function", ragquery.IntentRefactor},
		{"document wins over implement", "document and implement this helper", ragquery.IntentDocument},
		{"implement alone", "implement a new cache layer", ragquery.IntentImplement},
		{"default understand", "how does this work", ragquery.IntentUnderstand},
		{"empty text", "", ragquery.IntentUnderstand},
		{"whitespace only", "   ", ragquery.IntentUnderstand},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Classify(c.text))
		})
	}
}

func TestClassify_BoundedScan(t *testing.T) {
	huge := make([]byte, 2*maxScanBytes)
	for i := range huge {
		huge[i] = 'x'
	}
	// No keyword anywhere; must not hang or panic on oversized input.
	assert.Equal(t, ragquery.IntentUnderstand, Classify(string(huge)))
}
