package resource

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nuitester/internal/domain/vfs"
	"github.com/GriffinCanCode/nuitester/internal/shared/id"
)

func newStore(t *testing.T, files map[string]string) *vfs.Store {
	t.Helper()
	s := vfs.NewStore()
	for p, c := range files {
		_, err := s.Put(p, []byte(c), "")
		require.NoError(t, err)
	}
	return s
}

func TestMemoryHostAllocateOpenRelease(t *testing.T) {
	host := NewMemoryHost("")

	data := []byte("body{}")
	h, err := host.Allocate(data, "text/css", "style.css")
	require.NoError(t, err)
	data[0] = 'X'

	assert.True(t, strings.HasPrefix(h.URL, "/res/res_"))
	assert.True(t, strings.HasSuffix(h.URL, "/style.css"))
	assert.True(t, host.Owns(h.URL))

	r, ok := host.Open(h.ID)
	require.True(t, ok)
	assert.Equal(t, "body{}", string(r.Data), "host keeps its own copy")
	assert.Equal(t, "text/css", r.MimeType)
	assert.Equal(t, 1, host.Live())

	host.Release(h)
	host.Release(h)
	_, ok = host.Open(h.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, host.Live())
	assert.True(t, host.Owns(h.URL), "released handles keep their shape")
}

func TestMemoryHostOwns(t *testing.T) {
	host := NewMemoryHost("/preview/res/")
	h, err := host.Allocate(nil, "text/plain", "a b.txt")
	require.NoError(t, err)

	assert.Equal(t, "/preview/res/"+string(h.ID)+"/a%20b.txt", h.URL)
	assert.True(t, host.Owns(h.URL))
	assert.False(t, host.Owns("/preview/res/not-a-handle/a.txt"))
	assert.False(t, host.Owns("/res/"+string(h.ID)+"/a.txt"))
	assert.False(t, host.Owns("a.png"))
}

func TestMemoryHostClose(t *testing.T) {
	host := NewMemoryHost("")
	_, err := host.Allocate([]byte("x"), "text/plain", "x")
	require.NoError(t, err)

	host.Close()
	assert.Equal(t, 0, host.Live())
	_, err = host.Allocate([]byte("y"), "text/plain", "y")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBuildAllocatesEveryFile(t *testing.T) {
	host := NewMemoryHost("")
	r := NewResolver(host)
	store := newStore(t, map[string]string{
		"ui/index.html": "<html></html>",
		"ui/a.png":      "png",
		"client.lua":    "print(1)",
	})

	gen, err := r.Build(store)
	require.NoError(t, err)
	assert.Equal(t, []string{"client.lua", "ui/a.png", "ui/index.html"}, gen.Paths())
	assert.Equal(t, 3, host.Live())

	h, ok := gen.Lookup("ui/a.png")
	require.True(t, ok)
	res, ok := host.Open(h.ID)
	require.True(t, ok)
	assert.Equal(t, "png", string(res.Data))
	assert.Equal(t, "image/png", res.MimeType)

	assert.Equal(t, "ui/a.png", gen.Reverse()[h.URL])
}

func TestRebuildReleasesPreviousGeneration(t *testing.T) {
	host := NewMemoryHost("")
	r := NewResolver(host)
	store := newStore(t, map[string]string{"ui/index.html": "x", "ui/a.png": "y"})

	first, err := r.Build(store)
	require.NoError(t, err)
	_, err = first.Attach([]byte("<html>"), "text/html", "index.html")
	require.NoError(t, err)
	firstHandles := []Handle{}
	for _, p := range first.Paths() {
		h, _ := first.Lookup(p)
		firstHandles = append(firstHandles, h)
	}

	second, err := r.Build(store)
	require.NoError(t, err)

	assert.True(t, first.Released())
	for _, h := range firstHandles {
		_, ok := host.Open(h.ID)
		assert.False(t, ok, "handle %s of the first generation is still live", h.ID)
	}
	assert.Equal(t, 2, host.Live(), "only the second generation remains")
	assert.Same(t, second, r.Current())
	assert.Greater(t, second.Seq, first.Seq)

	_, err = first.Attach([]byte("late"), "text/plain", "late")
	assert.ErrorIs(t, err, ErrReleased)
	_, ok := first.Lookup("ui/a.png")
	assert.False(t, ok)
}

func TestRepeatedRebuildsDoNotGrow(t *testing.T) {
	host := NewMemoryHost("")
	r := NewResolver(host)
	store := newStore(t, map[string]string{"a.js": "1", "b.js": "2"})

	for i := 0; i < 25; i++ {
		gen, err := r.Build(store)
		require.NoError(t, err)
		_, err = gen.Attach([]byte("doc"), "text/html", "index.html")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, host.Live())
}

func TestReleaseIsIdempotent(t *testing.T) {
	host := NewMemoryHost("")
	r := NewResolver(host)
	gen, err := r.Build(newStore(t, map[string]string{"a.js": "1"}))
	require.NoError(t, err)

	r.Release(gen)
	r.Release(gen)
	r.Release(nil)
	assert.Nil(t, r.Current())
	assert.Equal(t, 0, host.Live())
}

func TestBuildEmptyStore(t *testing.T) {
	r := NewResolver(NewMemoryHost(""))
	gen, err := r.Build(vfs.NewStore())
	require.NoError(t, err)
	assert.Equal(t, 0, gen.Len())
}

type mockHost struct {
	mock.Mock
}

func (m *mockHost) Allocate(data []byte, mimeType, name string) (Handle, error) {
	args := m.Called(data, mimeType, name)
	return args.Get(0).(Handle), args.Error(1)
}

func (m *mockHost) Release(h Handle) { m.Called(h) }

func (m *mockHost) Open(hid id.HandleID) (Resource, bool) {
	args := m.Called(hid)
	return args.Get(0).(Resource), args.Bool(1)
}

func (m *mockHost) Owns(ref string) bool { return m.Called(ref).Bool(0) }

func (m *mockHost) Live() int { return m.Called().Int(0) }

func TestBuildFailureRollsBack(t *testing.T) {
	host := new(mockHost)
	ok := Handle{ID: "res_a", URL: "/res/res_a/a.js"}
	host.On("Allocate", []byte("1"), "application/javascript", "a.js").Return(ok, nil).Once()
	host.On("Allocate", []byte("2"), "application/javascript", "b.js").Return(Handle{}, errors.New("out of space")).Once()
	host.On("Release", ok).Return().Once()

	r := NewResolver(host)
	_, err := r.Build(newStore(t, map[string]string{"a.js": "1", "b.js": "2"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.js")
	assert.Nil(t, r.Current())
	host.AssertExpectations(t)
}
