package crawler

// Selector fallback chains for the review feed markup. The source rotates
// its generated class names every few releases; each field lists candidates
// newest first and the parser takes the first one that yields text. Keep the
// order, appending new candidates at the front when the markup drifts.

var reviewItemSelectors = []string{
	"li.place_apply_pui",
	"li.EjjAW",
	"li.owAeM",
	"div.review_item",
}

var authorSelectors = []string{
	"span.pui__NMi-Dp",
	"span.P9EZi",
	"div.author_name",
}

var bodySelectors = []string{
	"div.pui__vn15t2 a",
	"div.pui__vn15t2",
	"span.zPfVt",
	"div.review_text",
}

var tagSelectors = []string{
	"div.pui__HLNvmI span.pui__jhpEyP",
	"span.MHaAm",
	"div.visit_keywords span",
}

var visitDateSelectors = []string{
	"div.pui__QKE5Pr time",
	"time.P7gyV",
	"span.visit_date",
}

var visitOrdinalSelectors = []string{
	"div.pui__QKE5Pr span.pui__gfuUIT",
	"span.place_blind_ordinal",
	"span.visit_count",
}

var verifiedSelectors = []string{
	"div.pui__QKE5Pr span.pui__eb2Zfe",
	"span.receipt_badge",
}

var attachmentSelectors = []string{
	"div.pui__UpQ6AG img",
	"div.review_photos img",
}

var menuItemSelectors = []string{
	"li.E2jtL",
	"li.menu_item",
}

var menuNameSelectors = []string{
	"span.lPzHi",
	"span.menu_name",
}

var menuPriceSelectors = []string{
	"div.GXS1X em",
	"em.menu_price",
}

var menuDescSelectors = []string{
	"div.kPogF",
	"div.menu_desc",
}

// loadMoreSelectors locate the "reveal more" affordance on the feed page.
var loadMoreSelectors = []string{
	"a.fvwqf",
	"a.more_btn",
	"div.lfH3O > a",
}

// primaryContentSelectors mark the feed as rendered. Navigation is done once
// any of these is visible.
var primaryContentSelectors = []string{
	"div.place_section_content ul",
	"ul.list_review",
}

// totalCountSelectors read the source's own count of feed entries, when shown.
var totalCountSelectors = []string{
	"span.place_section_count",
	"em.review_total",
}
