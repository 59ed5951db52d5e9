// Command pongstress is a headless load generator: it drives many
// concurrent sessions through create/begin/timeout, verifying every round
// reports a result within its expected window. Each session runs in its
// own goroutine over its own control connection and UDP listener;
// sessions do not share a connection, and the state datagrams are not
// read.
package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"pongserver/internal/protocol"
	"pongserver/pkg/client"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9180", "server control address")
	numSessions := flag.Int("sessions", 200, "concurrent sessions to drive")
	gameTime := flag.Uint("game-time", 20, "round duration in seconds")
	flag.Parse()

	var completed, failed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(*numSessions)

	start := time.Now()
	for i := 0; i < *numSessions; i++ {
		go func(idx int) {
			defer wg.Done()
			if err := runOneSession(*addr, uint32(*gameTime)); err != nil {
				log.Printf("session %d: %v", idx, err)
				failed.Add(1)
				return
			}
			completed.Add(1)
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)
	fmt.Printf("completed=%d failed=%d elapsed=%s\n", completed.Load(), failed.Load(), elapsed)
}

func runOneSession(addr string, gameTime uint32) error {
	conn, err := client.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	sessionID, err := conn.CreateSession(protocol.CreateSessionRequest{
		FieldWidth:           800,
		FieldHeight:          400,
		WinScore:             5,
		GameTime:             gameTime,
		BallSpeed:            200,
		BallRadius:           30,
		PaddleSpeed:          600,
		PaddleSize:           200,
		PaddleOffsetFromWall: 100,
		RecvPort:             conn.RecvPort(),
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	if err := conn.BeginRound(sessionID); err != nil {
		return fmt.Errorf("begin round: %w", err)
	}

	budget := time.Duration(gameTime+5) * time.Second
	winner, err := conn.WaitRoundResult(budget)
	if err != nil {
		return fmt.Errorf("wait round result: %w", err)
	}
	_ = winner
	return nil
}
