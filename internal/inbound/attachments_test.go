package inbound

import "testing"

func TestCollectionTraversal(t *testing.T) {
	t.Parallel()

	c := loadFixture(t).Attachments()
	if c.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", c.Len())
	}

	c.Reset()
	if c.Position() != 0 {
		t.Errorf("Position after Reset: got %d, want 0", c.Position())
	}

	var names []string
	for c.Reset(); c.HasCurrent(); c.Advance() {
		name, err := c.Current().Name()
		if err != nil {
			t.Fatalf("Name: unexpected error: %v", err)
		}
		names = append(names, name)
	}

	want := []string{"a.txt", "report.pdf"}
	if len(names) != len(want) {
		t.Fatalf("names: got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d]: got %q, want %q", i, names[i], want[i])
		}
	}

	if c.Position() != 2 {
		t.Errorf("Position after traversal: got %d, want 2", c.Position())
	}
	if c.Current() != nil {
		t.Error("Current past the end should be nil")
	}
}

func TestCollectionAdvanceNTimes(t *testing.T) {
	t.Parallel()

	c := loadFixture(t).Attachments()
	c.Reset()
	for i := 0; i < c.Len(); i++ {
		if !c.HasCurrent() {
			t.Fatalf("HasCurrent false at position %d", i)
		}
		c.Advance()
	}
	if c.HasCurrent() {
		t.Error("HasCurrent should be false after advancing Len times")
	}

	// Further advancing stays invalid without error.
	c.Advance()
	if c.HasCurrent() {
		t.Error("HasCurrent should stay false past the end")
	}

	c.Reset()
	if !c.HasCurrent() {
		t.Error("traversal should restart after Reset")
	}
}

func TestCollectionCurrentIsNotCached(t *testing.T) {
	t.Parallel()

	c := loadFixture(t).Attachments()
	c.Reset()
	if c.Current() == c.Current() {
		t.Error("Current should construct a new wrapper each call")
	}
}

func TestCollectionGet(t *testing.T) {
	t.Parallel()

	c := loadFixture(t).Attachments()

	att, ok := c.Get(1)
	if !ok {
		t.Fatal("Get(1): expected attachment")
	}
	if name, _ := att.Name(); name != "report.pdf" {
		t.Errorf("Get(1).Name: got %q, want %q", name, "report.pdf")
	}
	if att.Index() != 1 {
		t.Errorf("Index: got %d, want 1", att.Index())
	}
	if c.Position() != 1 {
		t.Errorf("Position after Get(1): got %d, want 1", c.Position())
	}

	for _, index := range []int{2, 10, -1} {
		if att, ok := c.Get(index); ok || att != nil {
			t.Errorf("Get(%d): expected absent", index)
		}
		if c.Position() != index {
			t.Errorf("Position after Get(%d): got %d, want %d", index, c.Position(), index)
		}
		if c.HasCurrent() {
			t.Errorf("HasCurrent after Get(%d) should be false", index)
		}
	}
}

func TestCollectionGetEmptyEntries(t *testing.T) {
	t.Parallel()

	c := mustNew(t, `{"Attachments": [null, {}, {"Name": "x.bin"}]}`).Attachments()

	if _, ok := c.Get(0); ok {
		t.Error("Get(0): null entry should be absent")
	}
	if _, ok := c.Get(1); ok {
		t.Error("Get(1): empty object should be absent")
	}
	if _, ok := c.Get(2); !ok {
		t.Error("Get(2): expected attachment")
	}

	// A null entry ends sequential traversal.
	c.Reset()
	if c.HasCurrent() {
		t.Error("HasCurrent on a null entry should be false")
	}
}

func TestCollectionAll(t *testing.T) {
	t.Parallel()

	c := loadFixture(t).Attachments()

	for pass := 0; pass < 2; pass++ {
		var indexes []int
		for i, att := range c.All() {
			if att.Index() != i {
				t.Errorf("pass %d: attachment index %d yielded at %d", pass, att.Index(), i)
			}
			indexes = append(indexes, i)
		}
		if len(indexes) != 2 || indexes[0] != 0 || indexes[1] != 1 {
			t.Errorf("pass %d: got indexes %v, want [0 1]", pass, indexes)
		}
	}

	for i := range c.All() {
		if i == 0 {
			break
		}
	}
	if c.Position() != 0 {
		t.Errorf("Position after break: got %d, want 0", c.Position())
	}
}

func TestCollectionClone(t *testing.T) {
	t.Parallel()

	c := loadFixture(t).Attachments()
	c.Get(1)

	clone := c.Clone()
	if clone.Position() != 1 {
		t.Errorf("clone Position: got %d, want 1", clone.Position())
	}

	clone.Reset()
	if c.Position() != 1 {
		t.Errorf("original Position after clone Reset: got %d, want 1", c.Position())
	}
	if clone.Len() != c.Len() {
		t.Errorf("clone Len: got %d, want %d", clone.Len(), c.Len())
	}
}

func TestCollectionsAreIndependent(t *testing.T) {
	t.Parallel()

	msg := loadFixture(t)
	first := msg.Attachments()
	second := msg.Attachments()

	first.Advance()
	if second.Position() != 0 {
		t.Errorf("second Position: got %d, want 0", second.Position())
	}
}
