package mail

import (
	"context"
	"strings"
)

// Message is a single rendered email addressed to one recipient.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
}

// Batch groups messages that share a sender.
type Batch struct {
	FromAddress string
	FromName    string
	Messages    []Message
}

// Result reports the outcome for a single recipient.
type Result struct {
	To  string
	Err error
}

// BatchResult collects per-recipient outcomes of a batch.
type BatchResult struct {
	Results []Result
}

// Sent returns the number of successfully delivered messages.
func (r *BatchResult) Sent() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the results that carry an error.
func (r *BatchResult) Failed() []Result {
	if r == nil {
		return nil
	}
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Mailer delivers batches of rendered messages.
type Mailer interface {
	SendBatch(ctx context.Context, batch Batch) (*BatchResult, error)
}

func formatAddress(address, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return address
	}
	return name + " <" + address + ">"
}
