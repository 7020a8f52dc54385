// Package charta embeds the Charta scan-cycle VM in Go applications.
//
// The VM loads a compiled IR program describing boolean logic over
// named input signals and named output coils, and evaluates it in
// discrete scan cycles, PLC-style. Hosts set signals, execute cycles,
// read coils, and register callbacks that fire when coil states
// transition.
//
//	vm := charta.New()
//	if err := vm.LoadProgramFromFile(ctx, "program.ir.json"); err != nil {
//		return err
//	}
//
//	sub, _ := vm.OnCoilChange("allow_review", func(name string, old, new bool) {
//		log.Printf("%s: %v -> %v", name, old, new)
//	})
//	defer sub.Cancel()
//
//	if err := vm.SetSignal("user_submitted", true); err != nil {
//		return err
//	}
//	outputs, err := vm.ExecuteCycle()
//	if err != nil {
//		return err
//	}
//	if outputs["allow_review"] {
//		// ...
//	}
//
// All operations are safe to call from multiple goroutines. Cycle
// execution is serialized: at most one cycle is in flight at a time,
// and a caller entering ExecuteCycle while another cycle runs blocks
// until that cycle - evaluation plus callback dispatch - completes.
package charta
