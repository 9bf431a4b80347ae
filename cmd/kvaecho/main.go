// Command kvaecho exercises the command engine end to end against an
// in-process fake server: it issues a write, a read and a two-key batch
// get over a fake.Conn pair, and prints the outcomes. It exists purely
// as a runnable demonstration of the engine's wiring (§0), the way the
// teacher ships small binaries under examples/ alongside its library
// packages.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kvasync/asyncore/api"
	"github.com/kvasync/asyncore/batch"
	"github.com/kvasync/asyncore/cluster"
	"github.com/kvasync/asyncore/command"
	"github.com/kvasync/asyncore/fake"
	"github.com/kvasync/asyncore/internal/scheduling"
	"github.com/kvasync/asyncore/netio"
	"github.com/kvasync/asyncore/pool"
	"github.com/kvasync/asyncore/protocol"
)

func main() {
	logger := api.StdLogger{L: log.New(os.Stdout, "kvaecho ", 0)}

	p := pool.NewPool(16, 4096)
	scheduler := scheduling.NewScheduler(api.SchedulingReject, p, 0)
	timeouts := scheduling.NewTimeoutQueue(50 * time.Millisecond)
	defer timeouts.Stop()

	conn := fake.NewConn()
	node := cluster.NewNode("n1", "127.0.0.1:3000", func() netio.Connection { return conn }, 4, 0, time.Second)
	resolve := command.NodeResolver(func() (*cluster.Node, error) { return node, nil })

	key := api.Key{Namespace: "test", Set: "demo"}
	feedWriteOK(conn)

	writeDone := make(chan struct{})
	write := &command.WriteCommand{
		Key:  key,
		Bins: map[string]any{"greeting": "hello"},
		Listener: writeListener{
			onSuccess: func() { fmt.Println("write ok"); close(writeDone) },
			onFailure: func(err *api.CommandError) { fmt.Println("write failed:", err); close(writeDone) },
		},
	}
	wc := command.NewAsyncCommand(api.DefaultCommandPolicy(), resolve, scheduler, timeouts, write, logger)
	if err := scheduler.Schedule(wc); err != nil {
		fmt.Println("write rejected:", err)
	}
	<-writeDone

	feedReadOK(conn, map[string]any{"greeting": "hello"})
	readDone := make(chan struct{})
	read := &command.ReadCommand{
		Key: key,
		Listener: readListener{
			onSuccess: func(k api.Key, rec *api.Record) {
				fmt.Printf("read ok: bins=%v gen=%d\n", rec.Bins, rec.Generation)
				close(readDone)
			},
			onFailure: func(err *api.CommandError) { fmt.Println("read failed:", err); close(readDone) },
		},
	}
	rc := command.NewAsyncCommand(api.DefaultCommandPolicy(), resolve, scheduler, timeouts, read, logger)
	if err := scheduler.Schedule(rc); err != nil {
		fmt.Println("read rejected:", err)
	}
	<-readDone

	runBatchDemo(scheduler, timeouts, logger)
}

func runBatchDemo(scheduler *scheduling.Scheduler, timeouts *scheduling.TimeoutQueue, logger api.Logger) {
	connA := fake.NewConn()
	connB := fake.NewConn()
	nodeA := cluster.NewNode("a", "127.0.0.1:3001", func() netio.Connection { return connA }, 4, 0, time.Second)
	nodeB := cluster.NewNode("b", "127.0.0.1:3002", func() netio.Connection { return connB }, 4, 0, time.Second)

	keyA := api.Key{Namespace: "test", Set: "A"}
	keyB := api.Key{Namespace: "test", Set: "B"}
	router := cluster.Router(func(k api.Key) (*cluster.Node, error) {
		if k.Set == "A" {
			return nodeA, nil
		}
		return nodeB, nil
	})

	feedBatchRow(connA, keyA, map[string]any{"x": "1"})
	feedBatchRow(connB, keyB, map[string]any{"x": "2"})

	exec := batch.NewExecutor(api.DefaultBatchPolicy(), router, scheduler, timeouts, logger)
	listener := &batchListener{}
	exec.Get([]api.Key{keyA, keyB}, listener)

	if listener.err != nil {
		fmt.Println("batch failed:", listener.err)
		return
	}
	for i, rec := range listener.records {
		fmt.Printf("batch[%d]: bins=%v\n", i, rec.Record.Bins)
	}
}

type writeListener struct {
	onSuccess func()
	onFailure func(*api.CommandError)
}

func (l writeListener) OnSuccess()                      { l.onSuccess() }
func (l writeListener) OnFailure(err *api.CommandError) { l.onFailure(err) }

type readListener struct {
	onSuccess func(api.Key, *api.Record)
	onFailure func(*api.CommandError)
}

func (l readListener) OnSuccess(k api.Key, rec *api.Record) { l.onSuccess(k, rec) }
func (l readListener) OnFailure(err *api.CommandError)      { l.onFailure(err) }

type batchListener struct {
	records []*api.BatchRecord
	err     *api.CommandError
}

func (l *batchListener) OnSuccess(records []*api.BatchRecord, allKeysOK bool) { l.records = records }
func (l *batchListener) OnFailure(err *api.CommandError)                     { l.err = err }

func feedFramedBody(conn *fake.Conn, body []byte) {
	hdr := make([]byte, protocol.HeaderSize)
	protocol.WriteHeader(hdr, protocol.Header{Version: protocol.DefaultVersion, Type: protocol.MsgTypeCommand, Length: int64(len(body))})
	conn.Feed(hdr)
	conn.Feed(body)
}

func feedWriteOK(conn *fake.Conn) {
	body := make([]byte, 9)
	body[0] = byte(int8(api.ResultOK))
	feedFramedBody(conn, body)
}

func feedReadOK(conn *fake.Conn, bins map[string]any) {
	body := make([]byte, 9+command.BinsEncodedSize(bins))
	body[0] = byte(int8(api.ResultOK))
	command.EncodeBins(body[9:], bins)
	feedFramedBody(conn, body)
}

func feedBatchRow(conn *fake.Conn, key api.Key, bins map[string]any) {
	rowBody := make([]byte, 20+command.BinsEncodedSize(bins))
	copy(rowBody[:20], key.Digest[:])
	command.EncodeBins(rowBody[20:], bins)

	buf := make([]byte, 4096)
	off := protocol.AppendRow(buf, 0, protocol.RowHeader{ResultCode: api.ResultOK}, rowBody)
	off = protocol.AppendRow(buf, off, protocol.RowHeader{Info3: protocol.INFO3Last, ResultCode: api.ResultOK}, nil)
	feedFramedBody(conn, buf[:off])
}
