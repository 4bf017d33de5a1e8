package service

// CalculateSMA — среднее арифметическое первых window цен (список идёт от
// самых свежих к старым). ok=false, если данных не хватает.
func CalculateSMA(prices []float64, window int) (float64, bool) {
	if window <= 0 || len(prices) < window {
		return 0, false
	}
	var sum float64
	for _, p := range prices[:window] {
		sum += p
	}
	return sum / float64(window), true
}
