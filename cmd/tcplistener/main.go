// Command tcplistener dumps what the print endpoint's parser makes of each
// incoming request, without printing anything. Point a kiosk at it to see
// how its requests are routed.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"ticketprint/internal/request"
	"ticketprint/internal/response"
	"ticketprint/internal/ticket"
)

func main() {
	addr := flag.String("addr", ":9080", "Listen address")
	matching := flag.String("matching", "legacy", "Request matching: legacy or strict")
	flag.Parse()

	matcher, ok := request.MatcherByName(*matching)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown matching: %s (must be legacy or strict)\n", *matching)
		os.Exit(1)
	}

	tcp, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Println("ERROR: failed to open.\n", err.Error())
		os.Exit(1)
	}
	defer tcp.Close()

	fmt.Println("Listening for TCP traffic on", *addr)
	for {
		conn, err := tcp.Accept()
		if err != nil {
			fmt.Println("ERROR: failed to accept.\n", err)
			continue
		}
		go handleConn(conn, matcher)
	}
}

func handleConn(conn net.Conn, matcher request.Matcher) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second)) // optional safety

	req, err := request.RequestFromReader(conn, request.WithMatcher(matcher))
	if err != nil {
		fmt.Println("ERROR: failed to parse request:", err)
		return
	}

	fmt.Printf("Request line: %q\n- Method: %s\n- Target: %s\n- Version: %s\n- Route: %s\n",
		req.Line, req.RequestLine.Method, req.RequestLine.RequestTarget, req.RequestLine.HTTPVersion, req.Route)

	fmt.Println("Headers:")
	if len(req.Headers.Lines()) == 0 {
		fmt.Println("- (none)")
	}
	for _, line := range req.Headers.Lines() {
		fmt.Printf("- %s\n", line)
	}

	fmt.Println("Body:")
	if len(req.Body) == 0 {
		fmt.Println("- (none)")
	} else {
		fmt.Println(string(req.Body))
		if req.Truncated {
			fmt.Println("- (truncated)")
		}
	}

	if req.Route == request.RoutePrint {
		fmt.Println("Ticket:")
		job, err := ticket.Decode(req.Body)
		if err != nil {
			fmt.Println("- job dropped:", err)
		} else {
			out, err := ticket.NewFormatter().FormatOrFallback(job, "")
			if err != nil {
				fmt.Println("- format failed:", err)
			}
			fmt.Print(out)
		}
	}

	w := response.NewWriter()
	if req.Route == request.RouteUnknown {
		w.WriteHeader(response.NOT_FOUND)
	}
	_, _ = w.Write([]byte("OK\n"))
	_, _ = w.WriteTo(conn)
	fmt.Println()
}
