package grpcauth

import (
	"context"

	"google.golang.org/grpc"
)

// Shutdown ждет завершения активных RPC, но не дольше ctx.
// По истечении срока соединения рвутся через Stop. forced=true - пришлось рвать.
func Shutdown(ctx context.Context, srv *grpc.Server) (forced bool) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return false
	case <-ctx.Done():
		srv.Stop()
		<-done
		return true
	}
}
