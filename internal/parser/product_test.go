package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPageHTML = `
<html><body>
<div class="apphub_AppName">Example Product</div>
<div class="details_block">
	<b>Title:</b> Example Product<br>
	<b>Genre:</b> <a href="#">Action</a>, <a href="#">Indie</a><br>
	<div class="dev_row"><b>Developer:</b> <a href="#">Example Studio</a></div>
	<div class="dev_row"><b>Publisher:</b> <a href="#">Example Publishing</a></div>
	<b>Release Date:</b> 12 Mar, 2020<br>
</div>
<a class="game_area_details_specs_ctn" href="#">Single-player</a>
<a class="game_area_details_specs_ctn" href="#">Full controller support</a>
<a class="app_tag" href="#">Roguelike</a>
<a class="app_tag" href="#">Pixel Graphics</a>
<div class="game_purchase_price price">19,99€</div>
<div id="game_area_description">About this product.<br>It is good.</div>
<span class="game_review_summary positive">Very Positive</span>
<span class="responsive_hidden">(12,423)</span>
<div id="game_area_metascore"><div class="score high">84</div></div>
</body></html>`

func TestParseProductPage(t *testing.T) {
	pageURL := "https://store.example.com/app/440/Example_Product/"

	t.Run("extracts product fields", func(t *testing.T) {
		rec, err := ParseProductPage([]byte(productPageHTML), pageURL,
			"https://community.example.com", "https://store.example.com")
		require.NoError(t, err)

		assert.Equal(t, int64(440), rec.ID)
		assert.Equal(t, pageURL, rec.URL)
		assert.Equal(t, "https://community.example.com/app/440/reviews/?browsefilter=mostrecent&p=1", rec.ReviewsURL)
		assert.Equal(t, "https://store.example.com/news/app/440", rec.NewsURL)

		require.NotNil(t, rec.Title)
		assert.Equal(t, "Example Product", *rec.Title)
		require.NotNil(t, rec.Developer)
		assert.Equal(t, "Example Studio", *rec.Developer)
		require.NotNil(t, rec.Publisher)
		assert.Equal(t, "Example Publishing", *rec.Publisher)
		require.NotNil(t, rec.ReleaseDate)
		assert.Equal(t, "12 Mar, 2020", *rec.ReleaseDate)
		require.NotNil(t, rec.AppName)
		assert.Equal(t, "Example Product", *rec.AppName)

		assert.Equal(t, []string{"Action", "Indie"}, rec.Genres)
		assert.Equal(t, []string{"Single-player", "Full controller support"}, rec.Specs)
		assert.Equal(t, []string{"Roguelike", "Pixel Graphics"}, rec.Tags)

		require.NotNil(t, rec.Price)
		assert.InDelta(t, 19.99, *rec.Price, 0.001)
		assert.Nil(t, rec.DiscountPrice)

		require.NotNil(t, rec.Sentiment)
		assert.Equal(t, "Very Positive", *rec.Sentiment)
		require.NotNil(t, rec.NReviews)
		assert.Equal(t, 12423, *rec.NReviews)
		require.NotNil(t, rec.Metascore)
		assert.InDelta(t, 84, *rec.Metascore, 0.001)

		require.NotNil(t, rec.EarlyAccess)
		assert.False(t, *rec.EarlyAccess)
	})

	t.Run("discounted product keeps both prices", func(t *testing.T) {
		html := `<div class="discount_original_price">29,99€</div>
			<div class="discount_final_price">14,99€</div>`
		rec, err := ParseProductPage([]byte(html), pageURL,
			"https://community.example.com", "https://store.example.com")
		require.NoError(t, err)

		require.NotNil(t, rec.Price)
		assert.InDelta(t, 29.99, *rec.Price, 0.001)
		require.NotNil(t, rec.DiscountPrice)
		assert.InDelta(t, 14.99, *rec.DiscountPrice, 0.001)
	})

	t.Run("early access header sets the flag", func(t *testing.T) {
		html := `<div class="early_access_header">Early Access Product</div>`
		rec, err := ParseProductPage([]byte(html), pageURL,
			"https://community.example.com", "https://store.example.com")
		require.NoError(t, err)
		require.NotNil(t, rec.EarlyAccess)
		assert.True(t, *rec.EarlyAccess)
	})

	t.Run("URL without product id is rejected", func(t *testing.T) {
		_, err := ParseProductPage([]byte(productPageHTML), "https://store.example.com/agecheck/",
			"https://community.example.com", "https://store.example.com")
		assert.Error(t, err)
	})
}

func TestParseSearchPage(t *testing.T) {
	searchHTML := `
	<div id="search_result_container">
		<a href="https://store.example.com/app/440/First/?snr=1_7_7_230_150_1">First</a>
		<a href="https://store.example.com/app/570/Second/">Second</a>
		<a href="https://store.example.com/bundle/123/Not_A_Product/">Bundle</a>
	</div>
	<div class="search_pagination_right">
		<a href="https://store.example.com/search/?page=1">&lt;</a>
		<a href="https://store.example.com/search/?page=3">&gt;</a>
	</div>`

	t.Run("extracts product links and next page", func(t *testing.T) {
		page, err := ParseSearchPage([]byte(searchHTML))
		require.NoError(t, err)

		assert.Equal(t, []string{
			"https://store.example.com/app/440/First/?snr=1_7_7_230_150_1",
			"https://store.example.com/app/570/Second/",
		}, page.ProductURLs)
		assert.Equal(t, "https://store.example.com/search/?page=3", page.NextURL)
	})

	t.Run("last result page has no next link", func(t *testing.T) {
		page, err := ParseSearchPage([]byte(`<div id="search_result_container"></div>`))
		require.NoError(t, err)
		assert.Empty(t, page.ProductURLs)
		assert.Empty(t, page.NextURL)
	})
}
