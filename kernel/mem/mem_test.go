package mem

import "testing"

func TestPageSizeBytes(t *testing.T) {
	specs := []struct {
		size PageSize
		exp  Size
	}{
		{Size4K, 4 * Kb},
		{Size2M, 2 * Mb},
		{Size1G, 1 * Gb},
	}

	for _, spec := range specs {
		if got := spec.size.Bytes(); got != spec.exp {
			t.Errorf("%s: expected %d bytes; got %d", spec.size, spec.exp, got)
		}
	}
}

func TestSizeToPages(t *testing.T) {
	specs := []struct {
		size     Size
		expPages uint64
	}{
		{1023 * Kb, 256},
		{1024 * Kb, 256},
		{1 * Byte, 1},
	}

	for specIndex, spec := range specs {
		if got := spec.size.Pages(); got != spec.expPages {
			t.Errorf("[spec %d] expected Pages(%d bytes) to equal %d; got %d", specIndex, spec.size, spec.expPages, got)
		}
	}
}

func TestSizeAlignUp(t *testing.T) {
	specs := []struct {
		size  Size
		align Size
		exp   Size
	}{
		{0, 4 * Kb, 0},
		{1, 4 * Kb, 4 * Kb},
		{4 * Kb, 4 * Kb, 4 * Kb},
		{4*Kb + 1, 4 * Kb, 8 * Kb},
	}

	for specIndex, spec := range specs {
		if got := spec.size.AlignUp(spec.align); got != spec.exp {
			t.Errorf("[spec %d] expected %d; got %d", specIndex, spec.exp, got)
		}
	}
}
