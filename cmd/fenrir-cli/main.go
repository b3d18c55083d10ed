// Command fenrir-cli is a manual test client for the wire session server:
// flag-driven order entry plus a background goroutine printing execution
// reports as they arrive.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fenrir/internal/common"
	"fenrir/internal/wire"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9090", "address of the fenrir wire server")
	owner := flag.String("owner", "", "owner id (compulsory)")
	action := flag.String("action", "place", "action: place | cancel | amend")

	symbol := flag.String("symbol", "AAPL", "symbol")
	sideStr := flag.String("side", "buy", "buy | sell")
	typeStr := flag.String("type", "limit", "limit | market")
	price := flag.String("price", "100.00", "limit price")
	qtyStr := flag.String("qty", "10", "quantity, or comma-separated list (e.g. 10,20,50)")
	clientID := flag.String("client-id", "", "client id for this order (place), or the order to cancel/amend")
	newClientID := flag.String("new-client-id", "", "new client id for cancel/amend")
	newQty := flag.Uint64("new-qty", 0, "amend: new quantity (0 = unchanged)")
	newPrice := flag.String("new-price", "", "amend: new price (empty = unchanged)")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is required")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s as %q\n", *serverAddr, *owner)

	go readReports(conn)

	side := common.Buy
	if strings.EqualFold(*sideStr, "sell") {
		side = common.Sell
	}
	orderType := common.Limit
	if strings.EqualFold(*typeStr, "market") {
		orderType = common.Market
	}

	switch strings.ToLower(*action) {
	case "place":
		limitPrice, _ := decimal.NewFromString(*price)
		for _, qty := range parseQuantities(*qtyStr) {
			cid := *clientID
			if cid == "" {
				cid = fmt.Sprintf("cli-%d", time.Now().UnixNano())
			}
			msg := wire.NewOrderMessage{
				ClientID: cid,
				Symbol:   *symbol,
				Side:     side,
				Type:     orderType,
				Quantity: qty,
				Price:    limitPrice,
				OwnerID:  *owner,
			}
			if err := sendFrame(conn, msg.Encode()); err != nil {
				log.Printf("failed to send order: %v", err)
				continue
			}
			fmt.Printf("-> sent %s %s %d @ %s (client-id=%s)\n", strings.ToUpper(*sideStr), *symbol, qty, limitPrice, cid)
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		if *clientID == "" {
			log.Fatal("Error: -client-id is required for cancel")
		}
		msg := wire.CancelOrderMessage{Symbol: *symbol, OrigClientID: *clientID, NewClientID: *newClientID}
		if err := sendFrame(conn, msg.Encode()); err != nil {
			log.Printf("failed to send cancel: %v", err)
		} else {
			fmt.Printf("-> sent cancel for %s\n", *clientID)
		}

	case "amend":
		if *clientID == "" {
			log.Fatal("Error: -client-id is required for amend")
		}
		msg := wire.AmendOrderMessage{Symbol: *symbol, OrigClientID: *clientID, NewClientID: *newClientID}
		if *newQty > 0 {
			msg.HasNewQty = true
			msg.NewQty = *newQty
		}
		if *newPrice != "" {
			if p, err := decimal.NewFromString(*newPrice); err == nil {
				msg.HasNewPrice = true
				msg.NewPrice = p
			}
		}
		if err := sendFrame(conn, msg.Encode()); err != nil {
			log.Printf("failed to send amend: %v", err)
		} else {
			fmt.Printf("-> sent amend for %s\n", *clientID)
		}

	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("listening for reports... (Ctrl+C to exit)")
	select {}
}

func parseQuantities(input string) []uint64 {
	var out []uint64
	for _, p := range strings.Split(input, ",") {
		if v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func sendFrame(conn net.Conn, frame []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(frame)
	return err
}

func readReports(conn net.Conn) {
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		frame := make([]byte, n)
		if _, err := io.ReadFull(conn, frame); err != nil {
			log.Printf("error reading report: %v", err)
			return
		}

		reportType := wire.ReportType(binary.BigEndian.Uint16(frame[0:2]))
		if reportType == wire.ErrorReport {
			errStr, _, _ := takeWireString(frame[2:])
			fmt.Printf("\n[ERROR] %s\n", errStr)
			continue
		}
		printExecutionReport(frame[2:])
	}
}

// printExecutionReport decodes an ExecutionReportMessage by hand — the
// inverse of wire.ExecutionReportMessage.Serialize — since that message is
// write-only from the session layer's perspective.
func printExecutionReport(body []byte) {
	if len(body) < 8+8+1+1+1 {
		return
	}
	exchangeID := binary.BigEndian.Uint64(body[0:8])
	execID := binary.BigEndian.Uint64(body[8:16])
	execType := common.ExecType(body[16])
	status := common.OrderStatus(body[17])
	side := common.Side(body[18])
	body = body[19:]

	symbol, body, err := takeWireString(body)
	if err != nil {
		return
	}
	clientID, body, err := takeWireString(body)
	if err != nil {
		return
	}
	origClientID, body, err := takeWireString(body)
	if err != nil {
		return
	}
	if len(body) < 16 {
		return
	}
	leavesQty := binary.BigEndian.Uint64(body[0:8])
	cumQty := binary.BigEndian.Uint64(body[8:16])
	body = body[16:]
	avgPrice, body, err := takeWireString(body)
	if err != nil {
		return
	}
	if len(body) < 8 {
		return
	}
	lastQty := binary.BigEndian.Uint64(body[0:8])
	body = body[8:]
	lastPrice, _, err := takeWireString(body)
	if err != nil {
		return
	}

	sideStr := "BUY"
	if side == common.Sell {
		sideStr = "SELL"
	}
	fmt.Printf("\n[EXEC %d/%d] %s %s %s status=%d type=%d leaves=%d cum=%d last=%d@%s avg=%s orig=%s\n",
		exchangeID, execID, sideStr, symbol, clientID, status, execType, leavesQty, cumQty, lastQty, lastPrice, avgPrice, origClientID)
}

func takeWireString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, io.ErrUnexpectedEOF
	}
	n := int(binary.BigEndian.Uint16(buf[0:2]))
	buf = buf[2:]
	if len(buf) < n {
		return "", nil, io.ErrUnexpectedEOF
	}
	return string(buf[:n]), buf[n:], nil
}
