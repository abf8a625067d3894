package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk"
	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
)

// AliyunIssuer requests NLS access tokens through the CreateToken API.
type AliyunIssuer struct {
	client *sdk.Client
	region string
}

// NewAliyunIssuer creates an issuer signed with the given access key pair.
func NewAliyunIssuer(region, accessKeyID, accessKeySecret string) (*AliyunIssuer, error) {
	if region == "" {
		region = "cn-shanghai"
	}
	client, err := sdk.NewClientWithAccessKey(region, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("create aliyun client: %w", err)
	}
	return &AliyunIssuer{client: client, region: region}, nil
}

// Issue calls CreateToken. The SDK call does not take a context; ctx is only
// checked before the request is sent.
func (a *AliyunIssuer) Issue(ctx context.Context) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	req := requests.NewCommonRequest()
	req.Method = "POST"
	req.Scheme = "https"
	req.Domain = "nls-meta." + a.region + ".aliyuncs.com"
	req.ApiName = "CreateToken"
	req.Version = "2019-02-28"

	resp, err := a.client.ProcessCommonRequest(req)
	if err != nil {
		return Credential{}, fmt.Errorf("create token: %w", err)
	}
	return parseCreateToken([]byte(resp.GetHttpContentString()))
}

type createTokenResponse struct {
	Token struct {
		ID         string `json:"Id"`
		ExpireTime int64  `json:"ExpireTime"`
	} `json:"Token"`
	ErrMsg string `json:"ErrMsg"`
}

// parseCreateToken reads {"Token":{"Id":...,"ExpireTime":<epoch seconds>}}.
func parseCreateToken(body []byte) (Credential, error) {
	var r createTokenResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return Credential{}, fmt.Errorf("decode token response: %w", err)
	}
	if r.Token.ID == "" {
		if r.ErrMsg != "" {
			return Credential{}, fmt.Errorf("create token: %s", r.ErrMsg)
		}
		return Credential{}, fmt.Errorf("create token: no token in response")
	}
	return Credential{
		Token:     r.Token.ID,
		ExpiresAt: time.Unix(r.Token.ExpireTime, 0),
	}, nil
}
