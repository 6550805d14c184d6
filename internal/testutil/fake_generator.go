// fake_generator.go - Scripted model client for testing
package testutil

import (
	"context"
	"sync"

	"github.com/invoice-extractor/backend/internal/llm"
)

// GenerateCall is one recorded call to FakeGenerator.
type GenerateCall struct {
	Prompt string
	Doc    *llm.Document
}

// FakeGenerator implements llm.Generator with a fixed reply.
type FakeGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []GenerateCall

	// Block, when set, makes Generate wait for ctx to finish.
	Block bool
}

// NewFakeGenerator returns a generator that answers every call with reply.
func NewFakeGenerator(reply string) *FakeGenerator {
	return &FakeGenerator{reply: reply}
}

// NewFailingGenerator returns a generator that fails every call with err.
func NewFailingGenerator(err error) *FakeGenerator {
	return &FakeGenerator{err: err}
}

func (f *FakeGenerator) Generate(ctx context.Context, prompt string, doc *llm.Document) (string, error) {
	f.mu.Lock()
	var cp *llm.Document
	if doc != nil {
		d := *doc
		cp = &d
	}
	f.calls = append(f.calls, GenerateCall{Prompt: prompt, Doc: cp})
	reply, err, block := f.reply, f.err, f.Block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

func (f *FakeGenerator) Provider() string { return "fake" }
func (f *FakeGenerator) Model() string    { return "fake-model" }

// SetReply changes the reply for later calls.
func (f *FakeGenerator) SetReply(reply string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply, f.err = reply, nil
}

// Calls returns the recorded calls.
func (f *FakeGenerator) Calls() []GenerateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GenerateCall(nil), f.calls...)
}

// LastDoc returns the document from the latest call, or nil.
func (f *FakeGenerator) LastDoc() *llm.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1].Doc
}

var _ llm.Generator = (*FakeGenerator)(nil)
