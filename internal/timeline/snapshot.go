package timeline

// Snapshot returns a deep copy of the full project state for the
// persistence collaborator. Edits apply locally first; saving happens
// out-of-band, so the copy must not alias live model structures.
func (m *Model) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{
		Project: m.project,
		Tracks:  make([]*Track, len(m.tracks)),
		Assets:  make([]*MediaAsset, 0, len(m.assets)),
	}
	for i, t := range m.tracks {
		tc := *t
		tc.Clips = make([]*Clip, len(t.Clips))
		for j, c := range t.Clips {
			cc := *c
			if c.Transform != nil {
				tf := *c.Transform
				cc.Transform = &tf
			}
			tc.Clips[j] = &cc
		}
		snap.Tracks[i] = &tc
	}
	for _, a := range m.assets {
		ac := *a
		if a.Video != nil {
			vm := *a.Video
			ac.Video = &vm
		}
		snap.Assets = append(snap.Assets, &ac)
	}
	return snap
}

// Restore rehydrates the model from a snapshot, replacing all current
// tracks, clips, and assets.
func (m *Model) Restore(snap *Snapshot) {
	m.mu.Lock()
	m.project = snap.Project
	m.tracks = make([]*Track, 0, len(snap.Tracks))
	m.assets = make(map[string]*MediaAsset, len(snap.Assets))
	m.clips = make(map[string]*Clip)
	m.byClip = make(map[string]*Track)

	for _, a := range snap.Assets {
		ac := *a
		m.assets[ac.ID] = &ac
	}
	for i, t := range snap.Tracks {
		tc := *t
		tc.Position = i
		tc.Clips = make([]*Clip, 0, len(t.Clips))
		m.tracks = append(m.tracks, &tc)
		for _, c := range t.Clips {
			cc := *c
			cc.TrackID = tc.ID
			tc.Clips = append(tc.Clips, &cc)
			m.clips[cc.ID] = &cc
			m.byClip[cc.ID] = &tc
		}
		sortClips(&tc)
	}
	m.revision++
	m.mu.Unlock()

	m.notifyChange()
}
