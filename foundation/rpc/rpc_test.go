package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/foundation/rpc"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func startServer(t *testing.T) (*rpc.Server, string) {
	t.Helper()

	srv := rpc.NewServer(nil)

	srv.Register("add", func(ctx context.Context, params []json.RawMessage) (any, error) {
		var a, b int
		if err := rpc.Param(params, 0, &a); err != nil {
			return nil, err
		}
		if err := rpc.Param(params, 1, &b); err != nil {
			return nil, err
		}
		return a + b, nil
	})

	srv.Register("fail", func(ctx context.Context, params []json.RawMessage) (any, error) {
		return false, errors.New("refused")
	})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Should be able to listen: %s", err)
	}

	go srv.Serve(l)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return srv, l.Addr().String()
}

func Test_Call(t *testing.T) {
	_, addr := startServer(t)
	client := rpc.NewClient(addr, time.Second)

	t.Log("Given the need to call methods over rpc.")
	{
		var sum int
		if err := client.Call(context.Background(), &sum, "add", 2, 3); err != nil {
			t.Fatalf("\t%s\tShould be able to call a method: %s", failed, err)
		}
		if sum != 5 {
			t.Fatalf("\t%s\tShould get the result back: got %d, exp 5", failed, sum)
		}
		t.Logf("\t%s\tShould get the result back.", success)

		err := client.Call(context.Background(), nil, "fail")
		if err == nil || err.Error() != "refused" {
			t.Fatalf("\t%s\tShould get the handler error back: %v", failed, err)
		}
		t.Logf("\t%s\tShould get the handler error back.", success)

		err = client.Call(context.Background(), nil, "missing")
		if err == nil || !strings.Contains(err.Error(), rpc.ErrUnknownMethod.Error()) {
			t.Fatalf("\t%s\tShould reject an unknown method: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject an unknown method.", success)

		err = client.Call(context.Background(), nil, "add", 1)
		if err == nil || !strings.Contains(err.Error(), "missing param 1") {
			t.Fatalf("\t%s\tShould reject missing params: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject missing params.", success)
	}
}

func Test_ManyRequestsOneConnection(t *testing.T) {
	_, addr := startServer(t)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to connect: %s", failed, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	t.Log("Given the need to send several requests on one connection.")
	{
		if _, err := conn.Write([]byte("{\"method\":\"add\",\"params\":[1,1]}\nnot json\n{\"method\":\"add\",\"params\":[2,2]}\n")); err != nil {
			t.Fatalf("\t%s\tShould be able to write requests: %s", failed, err)
		}

		dec := json.NewDecoder(conn)

		exp := []struct {
			result int
			error  bool
		}{
			{result: 2},
			{error: true},
			{result: 4},
		}

		for i, e := range exp {
			var resp struct {
				Result int    `json:"result"`
				Error  string `json:"error"`
			}
			if err := dec.Decode(&resp); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read a response: %s", failed, i, err)
			}
			if (resp.Error != "") != e.error || resp.Result != e.result {
				t.Fatalf("\t%s\tTest %d:\tShould get the expected response: %+v", failed, i, resp)
			}
			t.Logf("\t%s\tTest %d:\tShould get the expected response.", success, i)
		}
	}
}

func Test_Shutdown(t *testing.T) {
	srv := rpc.NewServer(nil)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Should be able to listen: %s", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to connect: %s", failed, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("\t%s\tShould close open connections on shutdown: %s", failed, err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, rpc.ErrServerClosed) {
			t.Fatalf("\t%s\tShould stop serving with ErrServerClosed: %v", failed, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("\t%s\tShould stop serving after shutdown.", failed)
	}
	t.Logf("\t%s\tShould stop serving after shutdown.", success)
}
