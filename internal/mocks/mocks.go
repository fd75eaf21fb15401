// Package mocks provides mock implementations of core interfaces for testing.
package mocks

import (
	"context"
	"reels-generator/internal/types"

	"github.com/stretchr/testify/mock"
)

// MockTextGenerator is a mock implementation of types.TextGenerator
type MockTextGenerator struct {
	mock.Mock
}

func (m *MockTextGenerator) GenerateScript(ctx context.Context, topic string, sceneCount int) ([]string, error) {
	args := m.Called(ctx, topic, sceneCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockVoiceSynthesizer is a mock implementation of types.VoiceSynthesizer
type MockVoiceSynthesizer struct {
	mock.Mock
}

func (m *MockVoiceSynthesizer) Synthesize(ctx context.Context, text, voice, outputPath string) error {
	args := m.Called(ctx, text, voice, outputPath)
	return args.Error(0)
}

// MockStockSearch is a mock implementation of types.StockMediaSearch
type MockStockSearch struct {
	mock.Mock
}

func (m *MockStockSearch) Search(ctx context.Context, query string, kind types.StockKind) (string, error) {
	args := m.Called(ctx, query, kind)
	return args.String(0), args.Error(1)
}

// MockImageGenerator is a mock implementation of types.ImageGenerator
type MockImageGenerator struct {
	mock.Mock
}

func (m *MockImageGenerator) GenerateImage(ctx context.Context, prompt, outputPath string) error {
	args := m.Called(ctx, prompt, outputPath)
	return args.Error(0)
}

// MockFetcher is a mock implementation of types.MediaFetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url, dir string) (string, error) {
	args := m.Called(ctx, url, dir)
	return args.String(0), args.Error(1)
}

// MockUploader is a mock implementation of types.Uploader
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	args := m.Called(ctx, localPath, key)
	return args.String(0), args.Error(1)
}

// MockSceneRenderer is a mock implementation of types.SceneRenderer
type MockSceneRenderer struct {
	mock.Mock
}

func (m *MockSceneRenderer) RenderScene(ctx context.Context, scene types.Scene, outputPath string) (string, error) {
	args := m.Called(ctx, scene, outputPath)
	return args.String(0), args.Error(1)
}

// MockClipAssembler is a mock implementation of types.ClipAssembler
type MockClipAssembler struct {
	mock.Mock
}

func (m *MockClipAssembler) Concatenate(ctx context.Context, clipPaths []string, outputPath string) (string, error) {
	args := m.Called(ctx, clipPaths, outputPath)
	return args.String(0), args.Error(1)
}

// MockAudioMixer is a mock implementation of types.AudioMixer
type MockAudioMixer struct {
	mock.Mock
}

func (m *MockAudioMixer) MixBackgroundAudio(ctx context.Context, videoPath string, track types.BackgroundTrack, outputPath string) (string, error) {
	args := m.Called(ctx, videoPath, track, outputPath)
	return args.String(0), args.Error(1)
}
