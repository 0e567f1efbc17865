package apiclient

import "context"

// getResource performs a GET request to path and decodes the response
// body into a value of type T.
func getResource[T any](ctx context.Context, c *Client, path string) (T, error) {
	var result T
	err := c.get(ctx, path, &result)
	return result, err
}
