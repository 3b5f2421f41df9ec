package bento

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	b := New("Groceries", "u1")
	assert.True(t, IsValidUUID(b.UUID))
	assert.Equal(t, "Groceries", b.Name)
	assert.Equal(t, "u1", b.CreatorID)
	assert.Empty(t, b.TodoItems)
	assert.NoError(t, b.Validate())
}

func TestNewTodoItem(t *testing.T) {
	item := NewTodoItem("Milk", "2%", "u1", 1000)
	assert.True(t, IsValidUUID(item.UUID))
	assert.Equal(t, int64(1000), item.CreatedAtMillis)
	assert.Equal(t, int64(1000), item.ModifiedAtMillis)
	assert.Equal(t, "u1", item.ModifierID)
	assert.NoError(t, item.Validate())
}

func TestClone(t *testing.T) {
	b := &Bento{UUID: "b", Name: "n", TodoItems: []TodoItem{{UUID: "t1", Title: "a"}}}
	c := b.Clone()
	require.Equal(t, b, c)

	c.TodoItems[0].Title = "changed"
	assert.Equal(t, "a", b.TodoItems[0].Title)

	var nilBento *Bento
	assert.Nil(t, nilBento.Clone())
}

func TestIndexOfAndDoneCount(t *testing.T) {
	b := &Bento{TodoItems: []TodoItem{{UUID: "t1", Done: true}, {UUID: "t2"}, {UUID: "t3", Done: true}}}
	assert.Equal(t, 1, b.IndexOf("t2"))
	assert.Equal(t, -1, b.IndexOf("missing"))
	assert.Equal(t, 2, b.DoneCount())
}

func TestBentoValidate(t *testing.T) {
	testCases := []struct {
		name    string
		bento   Bento
		wantErr string
	}{
		{"missing uuid", Bento{Name: "n"}, "uuid cannot be empty"},
		{"missing name", Bento{UUID: "b"}, "name cannot be empty"},
		{"empty item uuid", Bento{UUID: "b", Name: "n", TodoItems: []TodoItem{{}}}, "empty uuid"},
		{"duplicate items", Bento{UUID: "b", Name: "n", TodoItems: []TodoItem{{UUID: "t"}, {UUID: "t"}}}, "duplicate"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.bento.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestTodoItemValidate(t *testing.T) {
	assert.Error(t, (&TodoItem{Title: "x"}).Validate())
	assert.Error(t, (&TodoItem{UUID: "t"}).Validate())
	assert.NoError(t, (&TodoItem{UUID: "t", Title: "x"}).Validate())
}
