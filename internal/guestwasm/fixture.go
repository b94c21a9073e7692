package guestwasm

// Memory layout of the fixture guest. The operation name is staged at
// opPtr, the request payload at payloadPtr, and constants live above
// dataBase. Payloads larger than dataBase-payloadPtr would clobber the
// constants; tests stay well below that.
const (
	opPtr      = 16
	payloadPtr = 1024

	plannedFailurePtr = 2048
	bindingPtr        = 2100
	namespacePtr      = 2110
	operationPtr      = 2120
	notFoundPtr       = 2200
)

const (
	plannedFailureMsg = "Planned Failure"
	notFoundMsg       = "Could not find function"
)

// Fixture synthesizes the reference waPC guest. Its __guest_call dispatches
// on the first byte of the operation name:
//
//   - 'e' (echo): performs one host call addressed ("wapc", "testing",
//     "echo") with the request payload, discards the outcome, then responds
//     with the payload unchanged.
//   - 'n' (nope): reports the guest error "Planned Failure".
//   - anything else: reports "Could not find function".
//
// The module exports "memory" (one page) and "__guest_call".
func Fixture() []byte {
	b := NewBuilder()

	tVoid := b.AddType([]byte{I32, I32}, nil)                               // (ptr, len) -> ()
	tHostCall := b.AddType([]byte{I32, I32, I32, I32, I32, I32, I32, I32}, []byte{I32}) // 4 x (ptr, len) -> errno
	tGuestCall := b.AddType([]byte{I32, I32}, []byte{I32})                  // (opLen, payloadLen) -> success

	guestRequest := b.ImportFunc("wapc", "__guest_request", tVoid)
	guestResponse := b.ImportFunc("wapc", "__guest_response", tVoid)
	guestError := b.ImportFunc("wapc", "__guest_error", tVoid)
	hostCall := b.ImportFunc("wapc", "__host_call", tHostCall)

	b.AddMemory(1)
	b.AddData(plannedFailurePtr, []byte(plannedFailureMsg))
	b.AddData(bindingPtr, []byte("wapc"))
	b.AddData(namespacePtr, []byte("testing"))
	b.AddData(operationPtr, []byte("echo"))
	b.AddData(notFoundPtr, []byte(notFoundMsg))

	// __guest_call(opLen, payloadLen); one scratch local holds the first
	// byte of the operation name.
	const scratch = 2
	code := NewCode(1)

	// Ask the host to stage the operation name and payload.
	code.I32Const(opPtr).
		I32Const(payloadPtr).
		Call(guestRequest)

	code.I32Const(opPtr).
		I32Load8U(0).
		LocalSet(scratch)

	// nope: report the planned failure.
	code.LocalGet(scratch).
		I32Const('n').
		I32Eq().
		IfI32().
		I32Const(plannedFailurePtr).
		I32Const(int32(len(plannedFailureMsg))).
		Call(guestError).
		I32Const(0).
		Else()

	// echo: host call first, outcome dropped, then echo the payload.
	code.LocalGet(scratch).
		I32Const('e').
		I32Eq().
		IfI32().
		I32Const(bindingPtr).
		I32Const(4). // len("wapc")
		I32Const(namespacePtr).
		I32Const(7). // len("testing")
		I32Const(operationPtr).
		I32Const(4). // len("echo")
		I32Const(payloadPtr).
		LocalGet(1).
		Call(hostCall).
		Drop().
		I32Const(payloadPtr).
		LocalGet(1).
		Call(guestResponse).
		I32Const(1).
		Else()

	// Anything else is an unregistered operation.
	code.I32Const(notFoundPtr).
		I32Const(int32(len(notFoundMsg))).
		Call(guestError).
		I32Const(0).
		End(). // inner if
		End()  // outer if

	fn := b.AddFunc(tGuestCall, code.Finish())
	b.ExportMemory("memory")
	b.ExportFunc("__guest_call", fn)

	return b.Encode()
}
