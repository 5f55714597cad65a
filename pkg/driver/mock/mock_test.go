package mock

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/webflow-runner/pkg/core"
)

func TestPage_ProductFlow(t *testing.T) {
	ctx := context.Background()
	p := NewPage(ProductApp(), "")

	assert.Equal(t, "about:blank", p.URL())
	require.NoError(t, p.Navigate(ctx, "/"))
	assert.Equal(t, DefaultBaseURL+"/", p.URL())

	add, err := p.FindElement(ctx, AddButton)
	require.NoError(t, err)
	assert.Equal(t, AddButton, add.Selector())
	require.NoError(t, p.Click(ctx, add))
	assert.Equal(t, DefaultBaseURL+ProductAddPath, p.URL())

	for query, text := range map[string]string{
		NameField:        "Widget",
		DescriptionField: "A test widget",
		PriceField:       "9.99",
	} {
		el, err := p.FindElement(ctx, query)
		require.NoError(t, err)
		require.NoError(t, p.Type(ctx, el, text))
	}

	submit, err := p.FindElement(ctx, SubmitButton)
	require.NoError(t, err)
	require.NoError(t, p.Click(ctx, submit))

	h2, err := p.FindElement(ctx, Heading)
	require.NoError(t, err)
	text, err := p.ReadText(ctx, h2)
	require.NoError(t, err)
	assert.Equal(t, "Product: Widget", text)

	calls := p.Calls()
	assert.Equal(t, 1, calls.Navigate)
	assert.Equal(t, 3, calls.Type)
	assert.Equal(t, 2, calls.Click)
	assert.Equal(t, 1, calls.ReadText)
	assert.Equal(t, 6, calls.Actions())
}

func TestPage_FindElement_NotFound(t *testing.T) {
	p := NewPage(ProductApp(), "")
	ctx := context.Background()

	_, err := p.FindElement(ctx, AddButton)
	assert.ErrorIs(t, err, core.ErrElementNotFound, "no document loaded")

	require.NoError(t, p.Navigate(ctx, "/"))
	_, err = p.FindElement(ctx, "#missing")
	assert.ErrorIs(t, err, core.ErrElementNotFound)
	assert.Equal(t, 2, p.Calls().Find)
}

func TestPage_AppearAfter(t *testing.T) {
	app := App{"/": {Nodes: []*Node{{Queries: []string{"#late"}, AppearAfter: 40 * time.Millisecond}}}}
	p := NewPage(app, "")
	ctx := context.Background()
	require.NoError(t, p.Navigate(ctx, "/"))

	_, err := p.FindElement(ctx, "#late")
	assert.ErrorIs(t, err, core.ErrElementNotFound)

	time.Sleep(60 * time.Millisecond)
	_, err = p.FindElement(ctx, "#late")
	assert.NoError(t, err)
}

func TestPage_Navigate_NeverReady(t *testing.T) {
	app := App{"/slow": {NeverReady: true}}
	p := NewPage(app, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Navigate(ctx, "/slow")
	assert.ErrorIs(t, err, core.ErrNavigationTimeout)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, "about:blank", p.URL())
}

func TestPage_Navigate_LoadDelay(t *testing.T) {
	app := App{"/": {LoadDelay: 10 * time.Millisecond}}
	p := NewPage(app, "http://localhost:4200/")

	require.NoError(t, p.Navigate(context.Background(), "/?tab=1"))
	assert.Equal(t, "http://localhost:4200/", p.URL())
}

func TestPage_StaleElement(t *testing.T) {
	p := NewPage(ProductApp(), "")
	ctx := context.Background()
	require.NoError(t, p.Navigate(ctx, "/"))

	h2, err := p.FindElement(ctx, Heading)
	require.NoError(t, err)
	require.NoError(t, p.Navigate(ctx, ProductAddPath))

	_, err = p.ReadText(ctx, h2)
	assert.ErrorIs(t, err, core.ErrElementNotFound)
	assert.Contains(t, err.Error(), "stale")
}

func TestPage_TypeIntoNonInput(t *testing.T) {
	p := NewPage(ProductApp(), "")
	ctx := context.Background()
	require.NoError(t, p.Navigate(ctx, "/"))

	btn, err := p.FindElement(ctx, AddButton)
	require.NoError(t, err)
	assert.ErrorIs(t, p.Type(ctx, btn, "x"), core.ErrDriverFailure)
}

func TestPage_ClosedRejectsCalls(t *testing.T) {
	p := NewPage(ProductApp(), "")
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, p.Closed())

	assert.ErrorIs(t, p.Navigate(context.Background(), "/"), core.ErrDriverFailure)
	_, err := p.FindElement(context.Background(), Heading)
	assert.ErrorIs(t, err, core.ErrDriverFailure)
}

func TestPage_CaptureContent(t *testing.T) {
	p := NewPage(ProductApp(), "")
	require.NoError(t, p.Navigate(context.Background(), "/"))

	content, err := p.CaptureContent()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), "<button>Add product</button>"))

	png, err := p.CaptureScreenshot()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, png[:4])
}

func TestProvider(t *testing.T) {
	pr := NewProvider(ProductApp())
	ctx := context.Background()

	p1, err := pr.NewPage(ctx)
	require.NoError(t, err)
	p2, err := pr.NewPage(ctx)
	require.NoError(t, err)
	assert.NotSame(t, p1, p2)
	assert.Len(t, pr.Pages(), 2)

	require.NoError(t, p1.Close())
	require.NoError(t, p1.Close())
	assert.Equal(t, 1, pr.Released())

	info := pr.Info()
	assert.Equal(t, "mock", info.Driver)
	assert.Equal(t, DefaultBaseURL, info.BaseURL)

	pr.NewPageErr = errors.New("no browser")
	_, err = pr.NewPage(ctx)
	assert.EqualError(t, err, "no browser")
}

func TestApp_Paths(t *testing.T) {
	assert.Equal(t, []string{"/", ProductAddPath, ProductDetailPath}, ProductApp().Paths())
}
