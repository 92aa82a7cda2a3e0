package eval

// ClassMetrics are one-vs-rest scores for a single label.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// LabelMetrics summarises predictions over one label space (severity or action).
type LabelMetrics struct {
	Accuracy       float64                   `json:"accuracy"`
	MacroPrecision float64                   `json:"macro_precision"`
	MacroRecall    float64                   `json:"macro_recall"`
	MacroF1        float64                   `json:"macro_f1"`
	Classes        map[string]ClassMetrics   `json:"per_class"`
	Confusion      map[string]map[string]int `json:"confusion_matrix"` // truth -> predicted -> count
}

// computeLabelMetrics scores pred against truth. Every label in the space
// gets a per-class row and a confusion row; macro averages cover only the
// labels present in truth. Zero denominators score 0.
func computeLabelMetrics[L ~string](space []L, truth, pred []L) LabelMetrics {
	m := LabelMetrics{
		Classes:   make(map[string]ClassMetrics, len(space)),
		Confusion: make(map[string]map[string]int, len(space)),
	}
	for _, t := range space {
		row := make(map[string]int, len(space))
		for _, p := range space {
			row[string(p)] = 0
		}
		m.Confusion[string(t)] = row
	}

	n := len(truth)
	correct := 0
	for i := range n {
		t, p := string(truth[i]), string(pred[i])
		if t == p {
			correct++
		}
		row, ok := m.Confusion[t]
		if !ok {
			row = make(map[string]int)
			m.Confusion[t] = row
		}
		row[p]++
	}
	if n > 0 {
		m.Accuracy = float64(correct) / float64(n)
	}

	present := 0
	for _, label := range space {
		var tp, fp, fn int
		for i := range n {
			isTruth, isPred := truth[i] == label, pred[i] == label
			switch {
			case isTruth && isPred:
				tp++
			case isPred:
				fp++
			case isTruth:
				fn++
			}
		}
		cm := ClassMetrics{
			Precision: ratio(tp, tp+fp),
			Recall:    ratio(tp, tp+fn),
			Support:   tp + fn,
		}
		if sum := cm.Precision + cm.Recall; sum > 0 {
			cm.F1 = 2 * cm.Precision * cm.Recall / sum
		}
		m.Classes[string(label)] = cm

		if cm.Support > 0 {
			present++
			m.MacroPrecision += cm.Precision
			m.MacroRecall += cm.Recall
			m.MacroF1 += cm.F1
		}
	}
	if present > 0 {
		m.MacroPrecision /= float64(present)
		m.MacroRecall /= float64(present)
		m.MacroF1 /= float64(present)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
