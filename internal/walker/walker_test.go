package walker

import (
	"context"
	"errors"
	"testing"

	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type treeLister struct {
	children map[string][]types.FileEntry
	failures map[string]error
	calls    []string
}

func (l *treeLister) ListChildren(_ context.Context, id string) ([]types.FileEntry, error) {
	l.calls = append(l.calls, id)
	if err, ok := l.failures[id]; ok {
		return nil, err
	}
	return l.children[id], nil
}

func file(id string) types.FileEntry {
	return types.FileEntry{ID: id, Name: id + ".txt", Kind: types.EntryRegular}
}

func folder(id string) types.FileEntry {
	return types.FileEntry{ID: id, Name: id, Kind: types.EntryContainer}
}

func names(entries []types.FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestWalk_NestedTree(t *testing.T) {
	lister := &treeLister{children: map[string][]types.FileEntry{
		"root": {file("a"), folder("sub"), file("b")},
		"sub":  {file("c")},
	}}

	res, err := Walk(context.Background(), lister, "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, names(res.Entries))
	assert.Empty(t, res.Skipped)
	for _, e := range res.Entries {
		assert.False(t, e.IsContainer())
	}
}

func TestWalk_FailingSubtreeIsSkipped(t *testing.T) {
	lister := &treeLister{
		children: map[string][]types.FileEntry{
			"root": {folder("bad"), file("a"), folder("good")},
			"good": {file("b")},
		},
		failures: map[string]error{"bad": errors.New("403 forbidden")},
	}

	res, err := Walk(context.Background(), lister, "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(res.Entries))
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "bad", res.Skipped[0].ContainerID)
	assert.Equal(t, "403 forbidden", res.Skipped[0].Error)
}

func TestWalk_RootFailureYieldsEmpty(t *testing.T) {
	lister := &treeLister{failures: map[string]error{"root": errors.New("boom")}}

	res, err := Walk(context.Background(), lister, "root")
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Len(t, res.Skipped, 1)
}

func TestWalk_Strict(t *testing.T) {
	lister := &treeLister{
		children: map[string][]types.FileEntry{"root": {folder("bad"), file("a")}},
		failures: map[string]error{"bad": errors.New("boom")},
	}

	_, err := Walk(context.Background(), lister, "root", WithStrict(true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing bad")
}

func TestWalk_FatalErrorAbortsLossyWalk(t *testing.T) {
	revoked := errors.New("401 token revoked")
	lister := &treeLister{
		children: map[string][]types.FileEntry{"root": {folder("locked"), folder("sub"), file("a")}},
		failures: map[string]error{
			"locked": errors.New("403 forbidden"),
			"sub":    revoked,
		},
	}

	_, err := Walk(context.Background(), lister, "root",
		WithFatal(func(err error) bool { return errors.Is(err, revoked) }),
	)
	require.ErrorIs(t, err, revoked)
	assert.Contains(t, err.Error(), "listing sub")
	assert.Equal(t, []string{"root", "locked", "sub"}, lister.calls)
}

func TestWalk_CycleGuard(t *testing.T) {
	lister := &treeLister{children: map[string][]types.FileEntry{
		"root": {folder("x"), file("a")},
		"x":    {folder("root"), folder("x"), file("b")},
	}}

	res, err := Walk(context.Background(), lister, "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, names(res.Entries))
	assert.Equal(t, []string{"root", "x"}, lister.calls)
}

func TestWalk_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Walk(ctx, &treeLister{}, "root")
	require.ErrorIs(t, err, context.Canceled)
}

func TestListerFunc(t *testing.T) {
	lister := ListerFunc(func(_ context.Context, id string) ([]types.FileEntry, error) {
		if id == "root" {
			return []types.FileEntry{file("only")}, nil
		}
		return nil, nil
	})

	res, err := Walk(context.Background(), lister, "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, names(res.Entries))
}
