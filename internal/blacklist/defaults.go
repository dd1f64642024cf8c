package blacklist

// DefaultRule is a built-in rule installed into an empty rule table.
type DefaultRule struct {
	Pattern string
	Level   IndexLevel
}

// DefaultRules covers password managers, search result pages, news and
// social front pages, banking, webmail and local hosts.
var DefaultRules = []DefaultRule{
	// password managers
	{"https://%1password.com%", LevelNoIndex},
	{"https://%lastpass.com%", LevelNoIndex},
	{"https://%dashlane.com%", LevelNoIndex},
	{"https://%bitwarden.com%", LevelNoIndex},

	// search result pages
	{"https://www.google.com/search%", LevelURLOnly},
	{"https://kagi.com/search%", LevelURLOnly},
	{"https://www.bing.com/search%", LevelURLOnly},
	{"https://search.yahoo.com/search%", LevelURLOnly},
	{"https://www.duckduckgo.com/?q=%", LevelURLOnly},
	{"https://www.ask.com/web?q=%", LevelURLOnly},
	{"https://www.reddit.com/search%", LevelURLOnly},
	{"https://www.baidu.com/s?%", LevelURLOnly},
	{"https://yandex.com/search/?%", LevelURLOnly},
	{"https://www.qwant.com/?q=%", LevelURLOnly},

	// front pages
	{"https://news.ycombinator.com", LevelURLOnly},
	{"https://news.ycombinator.com/news", LevelURLOnly},
	{"https://news.ycombinator.com/new", LevelURLOnly},
	{"https://news.ycombinator.com/best", LevelURLOnly},
	{"https://www.nytimes.com", LevelURLOnly},
	{"https://www.bbc.com", LevelURLOnly},
	{"https://www.cnn.com", LevelURLOnly},
	{"https://www.foxnews.com", LevelURLOnly},
	{"https://www.theguardian.com", LevelURLOnly},
	{"https://www.washingtonpost.com", LevelURLOnly},
	{"https://www.reuters.com", LevelURLOnly},

	// local development
	{"http://localhost%", LevelNoIndex},
	{"https://localhost%", LevelNoIndex},

	// banking and payments
	{"https://www.bankofamerica.com%", LevelURLOnly},
	{"https://www.chase.com%", LevelURLOnly},
	{"https://www.wellsfargo.com%", LevelURLOnly},
	{"https://www.citibank.com%", LevelURLOnly},
	{"https://www.capitalone.com%", LevelURLOnly},
	{"https://www.usbank.com%", LevelURLOnly},
	{"https://www.pnc.com%", LevelURLOnly},
	{"https://www.tdbank.com%", LevelURLOnly},
	{"https://app.mercury.com%", LevelURLOnly},
	{"https://www.schwab.com%", LevelURLOnly},
	{"https://www.fidelity.com%", LevelURLOnly},
	{"https://www.vanguard.com%", LevelURLOnly},
	{"https://www.etrade.com%", LevelURLOnly},
	{"https://www.tdameritrade.com%", LevelURLOnly},
	{"https://www.robinhood.com%", LevelURLOnly},
	{"https://www.paypal.com%", LevelURLOnly},
	{"https://www.venmo.com%", LevelURLOnly},

	// social front pages
	{"https://www.facebook.com", LevelURLOnly},
	{"https://twitter.com", LevelURLOnly},
	{"https://twitter.com/home", LevelURLOnly},
	{"https://x.com", LevelURLOnly},
	{"https://x.com/home", LevelURLOnly},
	{"https://www.linkedin.com", LevelURLOnly},
	{"https://www.tiktok.com", LevelURLOnly},

	// mail, documents and shopping
	{"https://mail.google.com", LevelNoIndex},
	{"https://outlook.live.com%", LevelNoIndex},
	{"https://docs.google.com%", LevelURLOnly},
	{"https://www.office.com%", LevelURLOnly},
	{"https://slack.com", LevelURLOnly},
	{"https://zoom.us%", LevelURLOnly},
	{"https://www.amazon.com%", LevelURLOnly},
	{"https://www.ebay.com%", LevelURLOnly},
	{"https://www.dropbox.com", LevelURLOnly},
	{"https://drive.google.com%", LevelURLOnly},
	{"https://www.coinbase.com%", LevelURLOnly},
	{"https://www.webmd.com", LevelURLOnly},

	// private networks
	{"https://%.local", LevelNoIndex},
	{"https://%.internal", LevelNoIndex},
}
