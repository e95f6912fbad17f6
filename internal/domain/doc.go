// Package domain contains the core business entities, value objects, and
// domain logic of the task tracker. It represents the heart of the system,
// independent of any specific storage engine or delivery mechanism.
//
// The Task entity, its closed TaskStatus enumeration and the TaskPatch
// partial-update input live here, together with the validation rules that
// every storage backend applies before persisting anything.
package domain
