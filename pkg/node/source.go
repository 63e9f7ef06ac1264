package node

import "fmt"

// Transport identifies where a message entered the node.
type Transport int

// Transports.
const (
	TransportUART0 Transport = iota
	TransportUART1
	TransportRadio
	numTransports
)

func (t Transport) String() string {
	switch t {
	case TransportUART0:
		return "uart0"
	case TransportUART1:
		return "uart1"
	case TransportRadio:
		return "radio"
	}
	return fmt.Sprintf("transport(%d)", int(t))
}

// Source describes the origin of a message. UARTSel is the reply target
// carried by a radio packet.
type Source struct {
	Transport Transport
	UARTSel   int
}

// FromUART is the source of messages on UART n.
func FromUART(n int) Source {
	return Source{Transport: Transport(n)}
}

// FromRadio is the source of a radio message with the given reply target.
func FromRadio(uartSel int) Source {
	return Source{Transport: TransportRadio, UARTSel: uartSel}
}

func (s Source) String() string {
	if s.Transport == TransportRadio {
		return fmt.Sprintf("radio(uart%d)", s.UARTSel)
	}
	return s.Transport.String()
}
