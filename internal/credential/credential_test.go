package credential

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"mimic-assistant/internal/integrations/paramstore"
)

func TestValidate(t *testing.T) {
	for _, v := range []string{"", "   ", "undefined", "NULL", "PLACEHOLDER_API_KEY", "your-api-key"} {
		_, err := Validate(v)
		require.ErrorIs(t, err, ErrMissing, "value=%q", v)
	}

	key, err := Validate("  AIza-real  ")
	require.NoError(t, err)
	require.Equal(t, "AIza-real", key)
}

func TestStatic(t *testing.T) {
	_, err := Static("").APIKey(context.Background())
	require.ErrorIs(t, err, ErrMissing)

	key, err := Static("k").APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "k", key)
}

func TestEnv_FirstNonEmptyWins(t *testing.T) {
	vals := map[string]string{"API_KEY": "from-alias", "GEMINI_API_KEY": ""}
	e := &Env{Names: []string{"GEMINI_API_KEY", "API_KEY"}, lookup: func(k string) (string, bool) {
		v, ok := vals[k]
		return v, ok
	}}

	key, err := e.APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "from-alias", key)

	vals["API_KEY"] = "undefined"
	_, err = e.APIKey(context.Background())
	require.ErrorIs(t, err, ErrMissing)

	delete(vals, "API_KEY")
	_, err = e.APIKey(context.Background())
	require.ErrorIs(t, err, ErrMissing)
}

func TestEnv_ReadsProcessEnvironment(t *testing.T) {
	t.Setenv("MIMIC_TEST_KEY", "env-key")
	key, err := NewEnv("MIMIC_TEST_KEY").APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "env-key", key)
}

type fakeGetter struct {
	val   string
	err   error
	calls int
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.val, f.err
}

func TestNewParamStore_Validates(t *testing.T) {
	_, err := NewParamStore(nil, "/mimic/api-key")
	require.Error(t, err)

	_, err = NewParamStore(&fakeGetter{}, " ")
	require.Error(t, err)
}

func TestParamStore_CachesSuccess(t *testing.T) {
	g := &fakeGetter{val: `{"token":"sk-from-ssm"}`}
	p, err := NewParamStore(g, "/mimic/api-key")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		key, err := p.APIKey(context.Background())
		require.NoError(t, err)
		require.Equal(t, "sk-from-ssm", key)
	}
	require.Equal(t, 1, g.calls)
}

func TestParamStore_Failures(t *testing.T) {
	g := &fakeGetter{err: errors.New("ssm unavailable")}
	p, err := NewParamStore(g, "/mimic/api-key")
	require.NoError(t, err)

	_, err = p.APIKey(context.Background())
	require.ErrorContains(t, err, "ssm unavailable")
	require.NotErrorIs(t, err, ErrMissing)

	g.err = nil
	g.val = `{"broken`
	_, err = p.APIKey(context.Background())
	require.ErrorContains(t, err, "unmarshal")

	g.val = `{"token":""}`
	_, err = p.APIKey(context.Background())
	require.ErrorIs(t, err, ErrMissing)

	g.val = `{"token":"late"}`
	key, err := p.APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "late", key)
	require.Equal(t, 4, g.calls)
}

func TestParamStore_MissingParameterIsNotConfigured(t *testing.T) {
	g := &fakeGetter{err: fmt.Errorf("%w: %q", paramstore.ErrNotFound, "/mimic/api-key")}
	p, err := NewParamStore(g, "/mimic/api-key")
	require.NoError(t, err)

	_, err = p.APIKey(context.Background())
	require.ErrorIs(t, err, ErrMissing)
	require.ErrorIs(t, err, paramstore.ErrNotFound)
}
