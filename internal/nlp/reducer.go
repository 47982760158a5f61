package nlp

// Reducer chains the linear 50-d projection with the 3-d visualization
// embedding.
type Reducer struct {
	Linear *SVD
	Visual *TSNE
}

func NewReducer(linear *SVD, visual *TSNE) *Reducer {
	return &Reducer{Linear: linear, Visual: visual}
}

func (r *Reducer) FitTransform(m *Matrix) (dense50, dense3 [][]float32, err error) {
	if err = r.Linear.Fit(m); err != nil {
		return nil, nil, err
	}
	if dense50, err = r.Linear.Transform(m); err != nil {
		return nil, nil, err
	}
	if dense3, err = r.Visual.FitTransform(dense50); err != nil {
		return nil, nil, err
	}
	return dense50, dense3, nil
}

func (r *Reducer) Transform(m *Matrix) (dense50, dense3 [][]float32, err error) {
	if r.Linear == nil || r.Visual == nil {
		return nil, nil, ErrModelNotFit
	}
	if dense50, err = r.Linear.Transform(m); err != nil {
		return nil, nil, err
	}
	if dense3, err = r.Visual.Transform(dense50); err != nil {
		return nil, nil, err
	}
	return dense50, dense3, nil
}
