package activecampaign

import "context"

// ContactPager streams the full contact set page by page. A short or
// empty page signals end of stream: once observed, Next returns
// (nil, nil) without further remote calls. Callers may simply stop
// calling Next to abandon the stream; no resources are held between
// pages.
type ContactPager struct {
	client Client
	limit  int
	offset int
	done   bool
	wait   func(context.Context) error
}

// NewContactPager builds a pager over c starting at offset 0. Custom
// Client implementations use this to satisfy AllContacts.
func NewContactPager(c Client, limit int) *ContactPager {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return &ContactPager{client: c, limit: limit}
}

// Next fetches the next page, blocking on the rate limiter between
// pages. It returns nil once the stream is exhausted.
func (p *ContactPager) Next(ctx context.Context) ([]Contact, error) {
	if p.done {
		return nil, nil
	}
	if p.wait != nil {
		if err := p.wait(ctx); err != nil {
			return nil, err
		}
	}

	page, err := p.client.GetContacts(ctx, p.offset, p.limit)
	if err != nil {
		return nil, err
	}

	if len(page.Contacts) < p.limit {
		p.done = true
	}
	if len(page.Contacts) == 0 {
		return nil, nil
	}

	p.offset += p.limit
	return page.Contacts, nil
}

// DealPager streams the full deal set page by page with the same
// termination contract as ContactPager.
type DealPager struct {
	client Client
	limit  int
	offset int
	done   bool
	wait   func(context.Context) error
}

// NewDealPager builds a pager over c starting at offset 0.
func NewDealPager(c Client, limit int) *DealPager {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return &DealPager{client: c, limit: limit}
}

// Next fetches the next page of deals, nil once exhausted.
func (p *DealPager) Next(ctx context.Context) ([]Deal, error) {
	if p.done {
		return nil, nil
	}
	if p.wait != nil {
		if err := p.wait(ctx); err != nil {
			return nil, err
		}
	}

	page, err := p.client.GetDeals(ctx, p.offset, p.limit)
	if err != nil {
		return nil, err
	}

	if len(page.Deals) < p.limit {
		p.done = true
	}
	if len(page.Deals) == 0 {
		return nil, nil
	}

	p.offset += p.limit
	return page.Deals, nil
}
