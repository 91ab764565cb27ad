// Package imagepush tags a locally built image for an ECR repository and
// pushes it, authenticating with a short-lived registry token.
package imagepush

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
)

// ECRAuthAPI is the slice of the ECR client used for registry login.
type ECRAuthAPI interface {
	GetAuthorizationToken(ctx context.Context, in *ecr.GetAuthorizationTokenInput, opts ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
}

// Pusher moves a local image into a remote repository.
type Pusher struct {
	Docker client.APIClient
	ECR    ECRAuthAPI
}

// VerifyLocalImage checks that the image to deploy actually exists in the
// local daemon, so a missing build fails the run before any cloud resource
// is touched.
func (p Pusher) VerifyLocalImage(ctx context.Context, localImage string) error {
	if _, err := p.Docker.ImageInspect(ctx, localImage); err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("local image %q not found: build it before deploying", localImage)
		}
		return fmt.Errorf("inspect local image %q: %w", localImage, err)
	}
	return nil
}

// Push tags localImage as repositoryURI:tag and pushes it. Returns the
// pushed reference.
func (p Pusher) Push(ctx context.Context, localImage, repositoryURI, tag string) (string, error) {
	ref := repositoryURI + ":" + tag
	if err := p.Docker.ImageTag(ctx, localImage, ref); err != nil {
		return "", fmt.Errorf("tag %q as %q: %w", localImage, ref, err)
	}

	auth, err := p.registryAuth(ctx)
	if err != nil {
		return "", err
	}

	slog.Info("pushing image", "ref", ref)
	resp, err := p.Docker.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: auth})
	if err != nil {
		return "", fmt.Errorf("push %q: %w", ref, err)
	}
	defer resp.Close()

	// Push failures arrive inside the JSON progress stream, not as the
	// ImagePush error.
	if err := jsonmessage.DisplayJSONMessagesStream(resp, io.Discard, 0, false, nil); err != nil {
		return "", fmt.Errorf("push %q: %w", ref, err)
	}
	return ref, nil
}

// registryAuth exchanges ECR credentials for the docker X-Registry-Auth
// payload. The token decodes to "AWS:<password>".
func (p Pusher) registryAuth(ctx context.Context) (string, error) {
	out, err := p.ECR.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return "", fmt.Errorf("get registry authorization token: %w", err)
	}
	if len(out.AuthorizationData) == 0 {
		return "", fmt.Errorf("get registry authorization token: empty authorization data")
	}
	data := out.AuthorizationData[0]

	decoded, err := base64.StdEncoding.DecodeString(aws.ToString(data.AuthorizationToken))
	if err != nil {
		return "", fmt.Errorf("decode registry authorization token: %w", err)
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", fmt.Errorf("malformed registry authorization token")
	}

	encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{
		Username:      user,
		Password:      pass,
		ServerAddress: aws.ToString(data.ProxyEndpoint),
	})
	if err != nil {
		return "", fmt.Errorf("encode registry auth: %w", err)
	}
	return encoded, nil
}
