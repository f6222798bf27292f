package mbean

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMemoryServer(t *testing.T) {
	m, err := LoadMemoryServer("testdata/keycloak.yml")
	require.NoError(t, err)

	ctx := context.Background()
	names, err := m.QueryNames(ctx, MustParseObjectName("jboss.as:subsystem=infinispan,cache-container=*,local-cache=*"))
	require.NoError(t, err)
	require.Len(t, names, 1)
	require.Equal(t, "users", names[0].KeyProperty("local-cache"))

	attrs, err := m.GetAttributes(ctx, names[0], []string{"hits", "stores", "missing"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"hits": 10, "stores": 3}, attrs)
}

func TestLoadMemoryServer_Errors(t *testing.T) {
	_, err := LoadMemoryServer("testdata/nonexistent.yml")
	require.Error(t, err)
}

func TestMemoryServer_QueryOrder(t *testing.T) {
	m := NewMemoryServer()
	for _, n := range []string{
		"jboss.as:subsystem=infinispan,cache-container=keycloak,cache=work",
		"jboss.as:subsystem=infinispan,cache-container=keycloak,cache=sessions",
		"jboss.as:subsystem=infinispan,cache-container=keycloak,cache=actionTokens",
	} {
		require.NoError(t, m.Register(n, nil))
	}

	names, err := m.QueryNames(context.Background(), MustParseObjectName("jboss.as:subsystem=infinispan,cache-container=*,cache=*"))
	require.NoError(t, err)

	got := []string{}
	for _, n := range names {
		got = append(got, n.KeyProperty("cache"))
	}
	require.Equal(t, []string{"work", "sessions", "actionTokens"}, got)
}

func TestMemoryServer_Register(t *testing.T) {
	m := NewMemoryServer()

	require.Error(t, m.Register("jboss.as:cache=*", nil))
	require.Error(t, m.Register("garbage", nil))

	name := "jboss.as:subsystem=infinispan,cache-container=keycloak,cache=work"
	require.NoError(t, m.Register(name, map[string]interface{}{"hits": 1}))
	require.NoError(t, m.Register(name, map[string]interface{}{"hits": 2}))

	attrs, err := m.GetAttributes(context.Background(), MustParseObjectName(name), []string{"hits"})
	require.NoError(t, err)
	require.Equal(t, 2, attrs["hits"])
}

func TestMemoryServer_RegisterCopiesAttributes(t *testing.T) {
	m := NewMemoryServer()

	name := "jboss.as:subsystem=infinispan,cache-container=keycloak,cache=work"
	in := map[string]interface{}{"hits": 1}
	require.NoError(t, m.Register(name, in))

	in["hits"] = 5
	in["misses"] = 3

	attrs, err := m.GetAttributes(context.Background(), MustParseObjectName(name), []string{"hits", "misses"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"hits": 1}, attrs)
}

func TestMemoryServer_Failures(t *testing.T) {
	m := NewMemoryServer()
	ctx := context.Background()
	errBackend := errors.New("backend unavailable")

	pattern := "jboss.as:subsystem=infinispan,cache-container=*,cache=*"
	require.NoError(t, m.FailQuery(pattern, errBackend))
	_, err := m.QueryNames(ctx, MustParseObjectName(pattern))
	require.ErrorIs(t, err, errBackend)

	name := "jboss.as:subsystem=infinispan,cache-container=keycloak,cache=work"
	require.NoError(t, m.Register(name, nil))
	require.NoError(t, m.FailRead(name, errBackend))
	_, err = m.GetAttributes(ctx, MustParseObjectName(name), []string{"hits"})
	require.ErrorIs(t, err, errBackend)

	_, err = m.GetAttributes(ctx, MustParseObjectName("jboss.as:cache=nope"), []string{"hits"})
	require.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		in    interface{}
		exp   float64
		expOK bool
	}{
		{42, 42, true},
		{int64(-3), -3, true},
		{uint32(7), 7, true},
		{float32(0.5), 0.5, true},
		{0.85, 0.85, true},
		{json.Number("12.5"), 12.5, true},
		{json.Number("x"), 0, false},
		{"42", 0, false},
		{true, 0, false},
		{nil, 0, false},
		{map[string]interface{}{}, 0, false},
	}

	for _, tt := range tests {
		got, ok := ToFloat64(tt.in)
		require.Equal(t, tt.expOK, ok, "%#v", tt.in)
		require.Equal(t, tt.exp, got, "%#v", tt.in)
	}
}

type flakyServer struct {
	*MemoryServer
	failures int
	calls    int
}

func (f *flakyServer) QueryNames(ctx context.Context, pattern ObjectName) ([]ObjectName, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection refused")
	}

	return f.MemoryServer.QueryNames(ctx, pattern)
}

func TestWaitReady(t *testing.T) {
	probe := MustParseObjectName("jboss.as:subsystem=infinispan,*")

	s := &flakyServer{MemoryServer: NewMemoryServer(), failures: 2}
	err := WaitReady(context.Background(), s, probe, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, s.calls)
}

func TestWaitReady_Canceled(t *testing.T) {
	probe := MustParseObjectName("jboss.as:subsystem=infinispan,*")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitReady(ctx, NewMemoryServer(), probe, time.Second)
	require.Error(t, err)
}
