package wgtrain

// Forward runs the hidden and output layers of snap on the host.
//
// Sums are accumulated in float64 and each activation is stored back as
// float32. Non-finite weights count as zero, and so do non-finite outputs.
// input is conformed to InputSize; the result always has OutputSize values.
func Forward(snap WeightsSnapshot, input []float32) []float32 {
	H, M, K := snap.Meta.InputSize, snap.Meta.HiddenSize, snap.Meta.OutputSize
	x := padRow(input, H)
	wIH := sanitize(padRow(snap.WeightsIH, snap.Meta.WeightsIHLen()))
	wHO := sanitize(padRow(snap.WeightsHO, snap.Meta.WeightsHOLen()))

	h := make([]float32, M)
	for j := 0; j < M; j++ {
		var sum float64
		for i := 0; i < H; i++ {
			sum += float64(x[i]) * float64(wIH[j*H+i])
		}
		h[j] = float32(sigmoid(sum))
	}

	o := make([]float32, K)
	for k := 0; k < K; k++ {
		var sum float64
		for j := 0; j < M; j++ {
			sum += float64(h[j]) * float64(wHO[k*M+j])
		}
		o[k] = float32(sigmoid(sum))
	}
	return sanitize(o)
}
