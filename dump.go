package vtable

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"text/tabwriter"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// DumpOptions controls Dump.
type DumpOptions struct {
	// Disassemble decodes the first instruction of every slot target that
	// is mapped.
	Disassemble bool

	// Arch selects the decoder, "amd64" or "arm64". Defaults to the
	// architecture we're running on.
	Arch string
}

// Dump writes a description of inst's dispatch table to w: whether it's
// relocated, the context record if there is one, and every slot. Unlike the
// other operations Dump returns an error for a broken table or an unusable
// binding instead of panicking, so it can be used while debugging one. The
// instance itself must still be mapped.
func Dump(w io.Writer, rt *Runtime, def Definition, inst Instance, opts DumpOptions) error {
	b := def.definition()
	if opts.Arch == "" {
		opts.Arch = runtime.GOARCH
	}

	if inst == 0 {
		return fmt.Errorf("instance %#x: %w", uintptr(inst), ErrNull)
	}
	if uintptr(inst)%wordSize != 0 {
		return fmt.Errorf("instance %#x: %w", uintptr(inst), ErrNotAligned)
	}
	table := rt.mem.ReadWord(uintptr(inst))

	canonical, err := rt.canonical(b, table)
	if err != nil {
		return &ConfigError{Binding: b.name, Err: err}
	}

	if canonical {
		fmt.Fprintf(w, "%s instance %#x: canonical table %#x\n", b.name, uintptr(inst), table)
	} else {
		fmt.Fprintf(w, "%s instance %#x: relocated table %#x\n", b.name, uintptr(inst), table)

		rec, err := rt.locateContext(b, table)
		if err != nil {
			fmt.Fprintf(w, "context: %v\n", err)
			return err
		}

		fmt.Fprintf(w, "context %#x: type %d, original table %#x\n", rec.addr, rec.typeID, rec.original)
		if rec.typeID != b.id {
			fmt.Fprintf(w, "context: %v\n", ErrTypeMismatch)
			return ErrTypeMismatch
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, name := range b.slots {
		target := rt.mem.ReadWord(table + uintptr(i)*wordSize)
		state := rt.classifier.Classify(target)
		fmt.Fprintf(tw, "%d\t%s\t%#x\t%s", i, name, target, state)

		if opts.Disassemble && state != NotMapped {
			asm, err := disassemble(rt.mem, opts.Arch, target)
			if err != nil {
				asm = "?"
			}
			fmt.Fprintf(tw, "\t%s", asm)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

var errUnknownArch = errors.New("unknown architecture")

func disassemble(mem Memory, arch string, pc uintptr) (string, error) {
	switch arch {
	case "amd64":
		code := make([]byte, 15) // longest x86 instruction
		mem.Read(pc, code)
		inst, err := x86asm.Decode(code, 64)
		if err != nil {
			return "", err
		}
		return inst.String(), nil
	case "arm64":
		code := make([]byte, 4)
		mem.Read(pc, code)
		inst, err := arm64asm.Decode(code)
		if err != nil {
			return "", err
		}
		return inst.String(), nil
	}
	return "", fmt.Errorf("%w: %s", errUnknownArch, arch)
}
