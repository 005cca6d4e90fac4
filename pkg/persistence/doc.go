// Package persistence stores the credential and the provisioned flag.
//
// Both nodes keep their durable state in a small byte-addressed Memory, the
// same shape as the on-chip EEPROM of the appliance. Unwritten cells read as
// ErasedByte. Three Memory implementations are provided: MemMemory for tests
// and the simulator, FileMemory for a flat image file, and SQLiteMemory for
// hosts where the store should survive torn writes.
//
// CredentialSlot lays a five-digit credential and a check byte over a
// Memory; ProvisionFlag is the single byte the panel uses to remember that
// first-boot setup has completed.
package persistence
