// Package hardware connects the synchronisation core to physical inputs and
// outputs.
//
// Buttons are discrete inputs sampled by a Watcher, which turns level
// changes into press and hold callbacks. Outputs are coils driven through
// the Coil actuator. Two backends provide the bits: an in-memory Sim board
// for development, and a Modbus TCP I/O board.
package hardware
