// Command pongclient is a minimal scripted client: it creates one
// session, begins its round, prints a handful of state datagrams, and
// reports the eventual round result.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"pongserver/internal/protocol"
	"pongserver/pkg/client"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9180", "server control address")
	gameTime := flag.Uint("game-time", 20, "round duration in seconds")
	flag.Parse()

	conn, err := client.Dial(*addr)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sessionID, err := conn.CreateSession(protocol.CreateSessionRequest{
		FieldWidth:           800,
		FieldHeight:          400,
		WinScore:             5,
		GameTime:             uint32(*gameTime),
		BallSpeed:            200,
		BallRadius:           30,
		PaddleSpeed:          600,
		PaddleSize:           200,
		PaddleOffsetFromWall: 100,
		RecvPort:             conn.RecvPort(),
	})
	if err != nil {
		log.Fatalf("create session: %v", err)
	}
	fmt.Printf("session created: id=%d\n", sessionID)

	if err := conn.BeginRound(sessionID); err != nil {
		log.Fatalf("begin round: %v", err)
	}
	fmt.Println("round started")

	for i := 0; i < 5; i++ {
		state, err := conn.RecvState(2 * time.Second)
		if err != nil {
			log.Printf("recv state: %v", err)
			break
		}
		fmt.Printf("state: ball=(%.1f,%.1f) paddleA=%.1f paddleB=%.1f\n",
			state.BallX, state.BallY, state.PaddleAOffset, state.PaddleBOffset)
	}

	winner, err := conn.WaitRoundResult(time.Duration(*gameTime+2) * time.Second)
	if err != nil {
		log.Fatalf("wait round result: %v", err)
	}
	fmt.Printf("round ended: winner=%v\n", winner)
}
