package load

import (
	"bytes"
	"context"
	"debug/elf"
	"io"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/rvlift/translator/ir"
)

type (
	// Chunk is a contiguous piece of the guest image.
	Chunk struct {
		Addr ir.Addr
		Data []byte
	}

	// Program is the loadable part of the guest executable.
	Program struct {
		Entry ir.Addr
		Brk   ir.Addr

		Code []Chunk
		Data []Chunk
	}
)

const pageSize = 1 << 12

func File(ctx context.Context, name string) (*Program, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	return Load(ctx, data)
}

// Load extracts the executable and data segments of a 32-bit risc-v
// static executable.
func Load(ctx context.Context, data []byte) (_ *Program, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "load elf", "size", len(data))
	defer tr.Finish("err", &err)

	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "parse elf")
	}

	switch {
	case f.Class != elf.ELFCLASS32:
		return nil, errors.New("not a 32-bit executable: %v", f.Class)
	case f.Data != elf.ELFDATA2LSB:
		return nil, errors.New("not little-endian: %v", f.Data)
	case f.Machine != elf.EM_RISCV:
		return nil, errors.New("not risc-v: %v", f.Machine)
	case f.Type != elf.ET_EXEC:
		return nil, errors.New("not a static executable: %v", f.Type)
	}

	p := &Program{
		Entry: ir.Addr(f.Entry),
	}

	for _, seg := range f.Progs {
		if seg.Type != elf.PT_LOAD || seg.Memsz == 0 {
			continue
		}

		buf := make([]byte, seg.Memsz)

		_, err = io.ReadFull(seg.Open(), buf[:seg.Filesz])
		if err != nil {
			return nil, errors.Wrap(err, "read segment at %#x", seg.Vaddr)
		}

		c := Chunk{Addr: ir.Addr(seg.Vaddr), Data: buf}

		if seg.Flags&elf.PF_X != 0 {
			p.Code = append(p.Code, c)
		} else {
			p.Data = append(p.Data, c)
		}

		if end := ir.Addr(seg.Vaddr + seg.Memsz); end > p.Brk {
			p.Brk = end
		}

		tr.V("segments").Printw("segment", "addr", seg.Vaddr, "filesz", seg.Filesz, "memsz", seg.Memsz, "exec", seg.Flags&elf.PF_X != 0)
	}

	if p.Code == nil {
		return nil, errors.New("no executable segments")
	}

	p.Brk = (p.Brk + pageSize - 1) &^ (pageSize - 1)

	tr.Printw("loaded", "entry", p.Entry, "brk", p.Brk, "code", len(p.Code), "data", len(p.Data))

	return p, nil
}
