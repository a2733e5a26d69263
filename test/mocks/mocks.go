// test/mocks/mocks.go

// Package mocks contains generated mocks for the application's interfaces.
// To regenerate mocks, run `make mocks` from the root directory.
package mocks

//go:generate mockgen -source=../../internal/core/ports/mutation_service.go -destination=mutation_service_mock.go -package=mocks
//go:generate mockgen -source=../../internal/workers/tasks.go -destination=enqueuer_mock.go -package=mocks
