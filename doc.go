// Private dispatch tables for foreign objects
//
// Objects created by a foreign module (one we can't recompile) find their
// virtual functions through a table pointer stored in their first word. Every
// instance of a class shares the same read-only table, so patching a slot in
// place changes every instance in the process. This package gives one
// instance its own copy of the table the first time a slot is written, puts a
// small context record in front of the copy, and lets the caller hang typed
// data off that record.
//
// A class is described once by a [Binding]: where its canonical table lives
// and the slot layout recovered by reverse engineering. [Slot] values read
// and write individual slots, relocating on the first write. [Binding.Restore]
// puts the canonical table back and frees the copy. It is usually called from
// an overridden destructor before forwarding to the original one.
//
//	var fighter = vtable.NewBinding[fighterData](vtable.BindingConfig{
//		Name:   "L2CFighterWrapper",
//		Module: "lu2cpp_common",
//		Offset: 0x800148,
//		Slots:  []string{"destructor", "deleter", "coroutine_yield"},
//	})
//
//	var deleter = vtable.NewSlot[uintptr](fighter, "deleter")
//
// Limitations:
//   - 64-bit address spaces only (slots and pointers are 8 bytes)
//   - Not safe for concurrent use on the same instance
//   - Blocks that are never restored are leaked on purpose
//   - Integrity failures panic. They only happen when a binding is wrong or
//     the instance pointer is garbage, and there's nothing to recover.
package vtable
