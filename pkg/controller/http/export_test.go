package http

var (
	VerifySignature  = verifySignature
	ComputeSignature = computeSignature
)
