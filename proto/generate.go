// Package proto holds the gRPC contract for the external AI service.
// The Go stubs are generated into this package:
//
//go:generate protoc --go_out=. --go_opt=paths=source_relative --go-grpc_out=. --go-grpc_opt=paths=source_relative ai_service.proto
package proto
