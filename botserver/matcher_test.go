package botserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.CreateIntent(ctx, "Emitir Nota Fiscal", "Para emitir uma nota fiscal, vá em Vendas > Notas Fiscais > Nova Nota.", []string{
		"como emitir nota fiscal",
		"quero gerar uma nota",
		"fazer nota fiscal",
		"nota fiscal de produto",
		"emitir nf",
	})
	require.NoError(t, err)
	_, err = store.CreateIntent(ctx, "Horário", "Abrimos às 8h.", []string{"horário de funcionamento", "que horas vocês abrem"})
	require.NoError(t, err)
	return store
}

func TestMatcher(t *testing.T) {
	m := NewMatcher(newCatalogStore(t), 0)
	assert.Equal(t, DefaultConfidenceThreshold, m.Threshold())

	tests := []struct {
		name      string
		question  string
		wantTitle string
		exact     bool
	}{
		{"exact ignores case and padding", "  Como Emitir Nota Fiscal ", "Emitir Nota Fiscal", true},
		{"fuzzy", "emitir a nota fiscal por favor", "Emitir Nota Fiscal", false},
		{"fuzzy with punctuation", "Qual o horário de funcionamento?", "Horário", false},
		{"below threshold", "qual a previsão do tempo", "", false},
		{"only stopwords", "o que é isso?", "", false},
		{"stopwords dropped before scoring", "quero gerar a nota", "Emitir Nota Fiscal", false},
		{"blank", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := m.Match(context.Background(), tt.question)
			require.NoError(t, err)
			if tt.wantTitle == "" {
				assert.Nil(t, match.Intent)
				assert.Less(t, match.Score, m.Threshold())
				return
			}
			require.NotNil(t, match.Intent)
			assert.Equal(t, tt.wantTitle, match.Intent.Title)
			assert.Equal(t, tt.exact, match.Exact)
			assert.GreaterOrEqual(t, match.Score, m.Threshold())
		})
	}
}

func TestMatcherThreshold(t *testing.T) {
	store := newCatalogStore(t)

	// "gerar nota fiscal" scores 79 against "fazer nota fiscal"
	match, err := NewMatcher(store, 70).Match(context.Background(), "gerar nota fiscal")
	require.NoError(t, err)
	require.NotNil(t, match.Intent)
	assert.Equal(t, 79, match.Score)

	match, err = NewMatcher(store, 80).Match(context.Background(), "gerar nota fiscal")
	require.NoError(t, err)
	assert.Nil(t, match.Intent)
	assert.Equal(t, 79, match.Score)
}
