package textgen

import "context"

// MockGenerator returns canned lyrics for local runs without a model key.
type MockGenerator struct {
	Text string
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Text: "<Verse 1>\nまぶしい朝の光\n\n<Chorus>\nあの日の歌を歌おう"}
}

func (g *MockGenerator) Generate(context.Context, string) (string, error) {
	return g.Text, nil
}
