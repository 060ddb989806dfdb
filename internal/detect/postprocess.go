package detect

// regionStats accumulates per-component pixel statistics while labelling.
type regionStats struct {
	count                  int
	probSum                float64
	minX, minY, maxX, maxY int
}

// probMapRegions runs a simplified DB post-process over a probability map:
// binarize, label 4-connected components, and keep components whose mean
// probability clears boxThresh. Boxes are in probability-map coordinates.
func probMapRegions(prob []float32, w, h int, dbThresh, boxThresh float32) []regionStats {
	if len(prob) != w*h || w <= 0 || h <= 0 {
		return nil
	}

	visited := make([]bool, w*h)
	var regions []regionStats

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if visited[idx] || prob[idx] < dbThresh {
				continue
			}
			st := floodComponent(prob, visited, w, h, x, y, dbThresh)
			if st.count > 0 && float32(st.probSum/float64(st.count)) >= boxThresh {
				regions = append(regions, st)
			}
		}
	}
	return regions
}

// floodComponent BFS-labels one 4-connected component starting at (sx, sy).
func floodComponent(prob []float32, visited []bool, w, h, sx, sy int, thresh float32) regionStats {
	st := regionStats{minX: sx, minY: sy, maxX: sx, maxY: sy}
	queue := []int{sy*w + sx}
	visited[sy*w+sx] = true

	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		x, y := idx%w, idx/w

		st.count++
		st.probSum += float64(prob[idx])
		if x < st.minX {
			st.minX = x
		}
		if y < st.minY {
			st.minY = y
		}
		if x > st.maxX {
			st.maxX = x
		}
		if y > st.maxY {
			st.maxY = y
		}

		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			ni := ny*w + nx
			if !visited[ni] && prob[ni] >= thresh {
				visited[ni] = true
				queue = append(queue, ni)
			}
		}
	}
	return st
}

// scaleToOriginal maps a box from probability-map coordinates to original
// image coordinates.
func scaleToOriginal(st regionStats, mapW, mapH, origW, origH int) Box {
	sx := float64(origW) / float64(mapW)
	sy := float64(origH) / float64(mapH)
	x := int(float64(st.minX) * sx)
	y := int(float64(st.minY) * sy)
	w := int(float64(st.maxX-st.minX+1) * sx)
	h := int(float64(st.maxY-st.minY+1) * sy)
	if x+w > origW {
		w = origW - x
	}
	if y+h > origH {
		h = origH - y
	}
	return Box{X: x, Y: y, W: w, H: h}
}
