package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case b := <-d.Output():
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no batch emitted")
		return nil
	}
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want []Operation // empty means the events cancel out
	}{
		{"create then modify stays create", []Operation{OpCreate, OpModify}, []Operation{OpCreate}},
		{"modify then delete is delete", []Operation{OpModify, OpDelete}, []Operation{OpDelete}},
		{"delete then create is modify", []Operation{OpDelete, OpCreate}, []Operation{OpModify}},
		{"repeated modify is one modify", []Operation{OpModify, OpModify, OpModify}, []Operation{OpModify}},
		{"create then delete cancels", []Operation{OpCreate, OpDelete}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(20*time.Millisecond, 4)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "a.go", Operation: op})
			}
			// a second path guarantees a batch is emitted
			d.Add(FileEvent{Path: "z.go", Operation: OpModify})

			batch := nextBatch(t, d)
			var got []Operation
			for _, ev := range batch {
				if ev.Path == "a.go" {
					got = append(got, ev.Operation)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDebouncer_BatchIsSortedByPath(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, 4)
	defer d.Stop()

	d.Add(FileEvent{Path: "b.go", Operation: OpModify})
	d.Add(FileEvent{Path: "a.go", Operation: OpModify})

	batch := nextBatch(t, d)
	require.Len(t, batch, 2)
	assert.Equal(t, "a.go", batch[0].Path)
	assert.Equal(t, "b.go", batch[1].Path)
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(time.Hour, 1)
	d.Add(FileEvent{Path: "a.go", Operation: OpModify})
	d.Stop()
	d.Stop()

	_, ok := <-d.Output()
	assert.False(t, ok)

	// adds after stop are ignored
	d.Add(FileEvent{Path: "b.go", Operation: OpModify})
}
