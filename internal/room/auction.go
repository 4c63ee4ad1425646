package room

// AnnounceTask opens (or reopens) an auction with an empty bid list.
func (r *Room) AnnounceTask(taskID, title string, requiredCapabilities []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction := Auction{
		TaskID:               taskID,
		Title:                title,
		RequiredCapabilities: requiredCapabilities,
		Bids:                 []Bid{},
	}
	if err := r.putJSON(prefixAuction+taskID, auction); err != nil {
		return err
	}

	ts := r.commitTs()
	r.commit(ts, "task_announced", map[string]any{
		"taskId":               taskID,
		"title":                title,
		"requiredCapabilities": requiredCapabilities,
	})
	return nil
}

// BidTask appends a bid to an open auction. Bids on unknown auctions are
// silently dropped.
func (r *Room) BidTask(taskID, agent string, capabilities []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var auction Auction
	found, err := r.getJSON(prefixAuction+taskID, &auction)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	ts := r.commitTs()
	auction.Bids = append(auction.Bids, Bid{Agent: agent, Capabilities: capabilities, Ts: ts})
	if err := r.putJSON(prefixAuction+taskID, auction); err != nil {
		return err
	}

	r.commit(ts, "task_bid", map[string]any{
		"taskId":       taskID,
		"agent":        agent,
		"capabilities": capabilities,
	})
	return nil
}

// ResolveAuction picks the winner: the first bid, in insertion order, whose
// capability set covers the required set; the first bidder when nobody
// qualifies. The winner's claim is taken as a subcommand so the task becomes
// owned. A nil result means there were no bids (or no auction).
func (r *Room) ResolveAuction(taskID string) (*AuctionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var auction Auction
	found, err := r.getJSON(prefixAuction+taskID, &auction)
	if err != nil {
		return nil, err
	}
	if !found || len(auction.Bids) == 0 {
		return nil, nil
	}

	winner := auction.Bids[0].Agent
	for _, bid := range auction.Bids {
		if hasAllCapabilities(bid.Capabilities, auction.RequiredCapabilities) {
			winner = bid.Agent
			break
		}
	}

	if _, err := r.claimTaskLocked(taskID, winner); err != nil {
		return nil, err
	}

	ts := r.commitTs()
	r.commit(ts, "auction_resolved", map[string]any{"taskId": taskID, "winner": winner})
	return &AuctionResult{TaskID: taskID, Winner: winner}, nil
}

func hasAllCapabilities(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, c := range have {
		set[c] = struct{}{}
	}
	for _, c := range want {
		if _, ok := set[c]; !ok {
			return false
		}
	}
	return true
}

// TaskList derives the dashboard task view from auctions and claims. Claimed
// tasks without an auction record still show up.
func (r *Room) TaskList() ([]TaskInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	claims, err := r.listClaimsLocked()
	if err != nil {
		return nil, err
	}
	claimByTask := make(map[string]TaskClaim, len(claims))
	for _, c := range claims {
		claimByTask[c.TaskID] = c
	}

	entries, err := r.kv.ListPrefix(prefixAuction)
	if err != nil {
		return nil, err
	}

	tasks := make([]TaskInfo, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		var a Auction
		if err := decode(e.Value, &a); err != nil {
			continue
		}
		info := TaskInfo{
			TaskID:               a.TaskID,
			Title:                a.Title,
			RequiredCapabilities: a.RequiredCapabilities,
			BidCount:             len(a.Bids),
			Status:               "open",
		}
		if c, ok := claimByTask[a.TaskID]; ok {
			info.Assignee = c.Agent
			info.Status = "in_progress"
		}
		tasks = append(tasks, info)
		seen[a.TaskID] = struct{}{}
	}

	for _, c := range claims {
		if _, ok := seen[c.TaskID]; ok {
			continue
		}
		tasks = append(tasks, TaskInfo{
			TaskID:   c.TaskID,
			Assignee: c.Agent,
			Status:   "in_progress",
		})
	}
	return tasks, nil
}

func (r *Room) listClaimsLocked() ([]TaskClaim, error) {
	entries, err := r.kv.ListPrefix(prefixTaskClaim)
	if err != nil {
		return nil, err
	}
	claims := make([]TaskClaim, 0, len(entries))
	for _, e := range entries {
		var c TaskClaim
		if err := decode(e.Value, &c); err != nil {
			continue
		}
		claims = append(claims, c)
	}
	return claims, nil
}
