package registry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interpretive-systems/erpview/internal/lifecycle"
	"github.com/interpretive-systems/erpview/internal/node"
)

type stubScreen struct {
	id        uuid.UUID
	name      string
	props     lifecycle.Props
	unmounted int
}

func (s *stubScreen) Mount(context.Context) error { return nil }
func (s *stubScreen) Unmount() { s.unmounted++ }
func (s *stubScreen) HandleViewChange(context.Context, string) error { return nil }
func (s *stubScreen) ID() uuid.UUID { return s.id }
func (s *stubScreen) Name() string { return s.name }
func (s *stubScreen) Title() string { return s.name }
func (s *stubScreen) Views() []string { return []string{"main"} }
func (s *stubScreen) View() string { return "main" }
func (s *stubScreen) Loading() bool { return false }
func (s *stubScreen) Build() node.Node { return node.El("screen", nil) }
func (s *stubScreen) HandleIntent(context.Context, node.Intent) error { return nil }
func (s *stubScreen) Flushed() {}

func stubFactory(built *[]*stubScreen) Factory {
	return func(_ Env, props lifecycle.Props) (Screen, error) {
		s := &stubScreen{id: uuid.New(), name: "stub", props: props}
		*built = append(*built, s)
		return s, nil
	}
}

func TestRegistry_CreateAndClose(t *testing.T) {
	var built []*stubScreen
	r := New(Env{})
	require.NoError(t, r.Register(Info{Name: "quality", Views: []string{"main"}}, stubFactory(&built)))
	require.NoError(t, r.Register(Info{Name: "hr"}, stubFactory(&built)))
	assert.Equal(t, []string{"hr", "quality"}, r.Names())

	a, err := r.Create("quality", lifecycle.Props{"module": "quality"})
	require.NoError(t, err)
	_, err = r.Create("hr", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Live())

	r.Release(a)
	assert.Equal(t, 1, built[0].unmounted)
	assert.Equal(t, 1, r.Live())

	r.Close()
	assert.Equal(t, 1, built[1].unmounted)
	assert.Zero(t, r.Live())
	_, err = r.Create("hr", nil)
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestRegistry_Errors(t *testing.T) {
	var built []*stubScreen
	r := New(Env{})
	require.NoError(t, r.Register(Info{Name: "iot"}, stubFactory(&built)))
	assert.ErrorIs(t, r.Register(Info{Name: "iot"}, stubFactory(&built)), ErrDuplicate)
	assert.Error(t, r.Register(Info{}, stubFactory(&built)))

	_, err := r.Create("reporting", nil)
	assert.ErrorIs(t, err, ErrUnknownScreen)
	_, err = r.Info("reporting")
	assert.ErrorIs(t, err, ErrUnknownScreen)

	info, err := r.Info("iot")
	require.NoError(t, err)
	assert.Equal(t, "iot", info.Name)
}
